package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidGeometry wraps every floor-plan validation failure so callers can
// tell bad input apart from other errors.
var ErrInvalidGeometry = errors.New("invalid geometry")

// rectangleTolerance bounds |e1·e2| / (|e1||e2|) for a room outline to count
// as rectangular.
const rectangleTolerance = 1e-6

// Wall is a vertical wall on the floor plan between two endpoints. It spans
// from the floor (z = 0) to the ceiling.
type Wall struct {
	A, B Vec2
}

// Room is a rectangular floor outline. Corners are ordered around the
// perimeter; the same footprint is used for the floor and the ceiling.
type Room struct {
	Corners [4]Vec2
}

// Plane is a bounded rectangular reflector. S1→S2 and S1→S3 are its two
// edges; S4 is the corner opposite S1.
type Plane struct {
	S1, S2, S3, S4 Vec3
}

// Edges returns the two edge vectors spanning the plane from S1.
func (p Plane) Edges() (Vec3, Vec3) {
	return p.S2.Sub(p.S1), p.S3.Sub(p.S1)
}

// Normal returns the (unnormalised) plane normal e1 × e2.
func (p Plane) Normal() Vec3 {
	e1, e2 := p.Edges()
	return e1.Cross(e2)
}

// UnitNormal returns the plane normal scaled to unit length.
func (p Plane) UnitNormal() (Vec3, error) {
	return p.Normal().Normalize()
}

// Scene is the static floor plan the tracer runs against.
type Scene struct {
	Walls   []Wall
	Rooms   []Room
	Ceiling float64
}

// Planes converts the scene into its bounded reflecting planes.
func (s *Scene) Planes() ([]Plane, error) {
	return BuildPlanes(s.Walls, s.Rooms, s.Ceiling)
}

// Fingerprint returns a stable 64-bit digest of the scene geometry. Two
// scenes with the same walls, rooms and ceiling in the same order share a
// fingerprint.
func (s *Scene) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = d.Write(buf[:])
	}
	put(s.Ceiling)
	put(float64(len(s.Walls)))
	for _, w := range s.Walls {
		put(w.A.X)
		put(w.A.Y)
		put(w.B.X)
		put(w.B.Y)
	}
	put(float64(len(s.Rooms)))
	for _, r := range s.Rooms {
		for _, c := range r.Corners {
			put(c.X)
			put(c.Y)
		}
	}
	return d.Sum64()
}

// BuildPlanes extrudes walls to the ceiling and adds a floor and a ceiling
// plane for every room outline. Walls come first in input order, followed by
// floor then ceiling for each room.
func BuildPlanes(walls []Wall, rooms []Room, ceiling float64) ([]Plane, error) {
	if !(ceiling > 0) || math.IsInf(ceiling, 0) {
		return nil, fmt.Errorf("%w: ceiling height must be positive, got %g", ErrInvalidGeometry, ceiling)
	}

	planes := make([]Plane, 0, len(walls)+2*len(rooms))
	for i, w := range walls {
		if w.A == w.B {
			return nil, fmt.Errorf("%w: wall %d has identical endpoints %s", ErrInvalidGeometry, i, w.A)
		}
		planes = append(planes, Plane{
			S1: w.A.Extrude(ceiling),
			S2: w.B.Extrude(ceiling),
			S3: w.A.Extrude(0),
			S4: w.B.Extrude(0),
		})
	}

	for i, r := range rooms {
		if err := validateRoom(r); err != nil {
			return nil, fmt.Errorf("%w: room %d: %v", ErrInvalidGeometry, i, err)
		}
		planes = append(planes, roomPlane(r, 0), roomPlane(r, ceiling))
	}
	return planes, nil
}

// roomPlane lays the room outline at height z. The outline is ordered
// around the perimeter, so corners 1 and 3 are the neighbours of corner 0.
func roomPlane(r Room, z float64) Plane {
	c := r.Corners
	return Plane{
		S1: c[0].Extrude(z),
		S2: c[1].Extrude(z),
		S3: c[3].Extrude(z),
		S4: c[2].Extrude(z),
	}
}

func validateRoom(r Room) error {
	c := r.Corners
	for i := range c {
		next := c[(i+1)%len(c)]
		if c[i] == next {
			return fmt.Errorf("corners %d and %d coincide at %s", i, (i+1)%len(c), c[i])
		}
	}
	e1 := c[1].Sub(c[0])
	e2 := c[3].Sub(c[0])
	if cos := math.Abs(e1.Dot(e2)) / (e1.Norm() * e2.Norm()); cos > rectangleTolerance {
		return fmt.Errorf("outline is not rectangular (edge cosine %.3g)", cos)
	}
	// Opposite corner must close the rectangle.
	if want := c[1].Add(e2); want.Sub(c[2]).Norm() > rectangleTolerance*(e1.Norm()+e2.Norm()) {
		return fmt.Errorf("corner 2 is %s, want %s to close the rectangle", c[2], want)
	}
	return nil
}

// BoundingRoom returns the rectangular outline [0,w]×[0,h] used when a floor
// plan declares walls but no explicit room outlines.
func BoundingRoom(width, height float64) Room {
	return Room{Corners: [4]Vec2{
		{X: 0, Y: 0},
		{X: width, Y: 0},
		{X: width, Y: height},
		{X: 0, Y: height},
	}}
}
