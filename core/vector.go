package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroLength is returned when normalising a vector whose length is
// exactly zero.
var ErrZeroLength = errors.New("zero-length vector")

// Vec2 is a point or direction on the floor plan, in metres.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(other Vec2) Vec2    { return Vec2{X: v.X + other.X, Y: v.Y + other.Y} }
func (v Vec2) Sub(other Vec2) Vec2    { return Vec2{X: v.X - other.X, Y: v.Y - other.Y} }
func (v Vec2) Mul(f float64) Vec2     { return Vec2{X: v.X * f, Y: v.Y * f} }
func (v Vec2) Dot(other Vec2) float64 { return v.X*other.X + v.Y*other.Y }
func (v Vec2) Norm() float64          { return math.Hypot(v.X, v.Y) }
func (v Vec2) Extrude(z float64) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: z} }
func (v Vec2) String() string         { return fmt.Sprintf("(%g, %g)", v.X, v.Y) }

// Less orders points lexicographically by X, then Y.
func (v Vec2) Less(other Vec2) bool {
	return v.X < other.X || (v.X == other.X && v.Y < other.Y)
}

// Vec3 is a point or direction in the extruded room volume, in metres.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul scales every component by f.
func (v Vec3) Mul(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the right-handed cross product v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Normalize returns a unit-length copy of v. Only an exactly zero vector is
// rejected; tiny vectors are scaled up as-is.
func (v Vec3) Normalize() (Vec3, error) {
	l := v.Norm()
	if l == 0 {
		return Vec3{}, ErrZeroLength
	}
	return Vec3{X: v.X / l, Y: v.Y / l, Z: v.Z / l}, nil
}

// Translate returns v moved by (dx, dy, dz).
func (v Vec3) Translate(dx, dy, dz float64) Vec3 {
	return Vec3{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}
}

// Less orders vectors lexicographically by X, then Y, then Z.
func (v Vec3) Less(other Vec3) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	if v.Y != other.Y {
		return v.Y < other.Y
	}
	return v.Z < other.Z
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// LineDist returns the perpendicular distance from p to the infinite line
// through a and b. When a == b the line collapses to a point and the plain
// distance to a is returned.
func LineDist(p, a, b Vec3) float64 {
	ab := b.Sub(a)
	l := ab.Norm()
	if l == 0 {
		return p.DistanceTo(a)
	}
	return ab.Cross(p.Sub(a)).Norm() / l
}

// projectOntoLine returns the signed distance from a, along a→b, of p's
// orthogonal projection onto the line through a and b.
func projectOntoLine(p, a, b Vec3) float64 {
	ab := b.Sub(a)
	l := ab.Norm()
	if l == 0 {
		return 0
	}
	return p.Sub(a).Dot(ab) / l
}
