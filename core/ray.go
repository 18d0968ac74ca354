package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroDensity is returned when the ray grid density is not positive.
var ErrZeroDensity = errors.New("ray sample density must be positive")

// Ray is a directed segment from Origin towards Target. Rays are values;
// every bounce produces a new Ray rather than moving an existing one.
type Ray struct {
	Origin Vec3
	Target Vec3
}

// Direction returns Target - Origin.
func (r Ray) Direction() Vec3 {
	return r.Target.Sub(r.Origin)
}

// At returns the point Origin + t·Direction.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction().Mul(t))
}

// Reflect mirrors d about the unit normal n: d − 2(d·n)n.
func Reflect(d, n Vec3) Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

// SphericalDirection converts latitude/longitude in degrees to a unit
// direction with latitude measured from +z.
func SphericalDirection(latDeg, lngDeg float64) Vec3 {
	lat := latDeg * math.Pi / 180
	lng := lngDeg * math.Pi / 180
	return Vec3{
		X: math.Cos(lng) * math.Sin(lat),
		Y: math.Sin(lng) * math.Sin(lat),
		Z: math.Cos(lat),
	}
}

// GenerateRays sweeps latitude and longitude independently over [0°, 360°)
// in n equal steps and returns n² unit rays leaving tx, latitude-major.
func GenerateRays(tx Vec3, n int) ([]Ray, error) {
	if n <= 0 {
		return nil, fmt.Errorf("GenerateRays: %w (got %d)", ErrZeroDensity, n)
	}
	step := 360.0 / float64(n)
	rays := make([]Ray, 0, n*n)
	for i := 0; i < n; i++ {
		lat := float64(i) * step
		for j := 0; j < n; j++ {
			dir := SphericalDirection(lat, float64(j)*step)
			rays = append(rays, Ray{Origin: tx, Target: tx.Add(dir)})
		}
	}
	return rays, nil
}
