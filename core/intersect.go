package core

import "math"

const (
	// parallelEpsilon is the |direction·normal| below which a segment is
	// treated as parallel to a plane.
	parallelEpsilon = 1e-6
	// boundsSlack widens the plane rectangle so hits exactly on an edge
	// survive rounding.
	boundsSlack = 1e-9
	// minHitParam discards hits at or behind the segment origin, including
	// the plane a reflected ray has just left.
	minHitParam = 1e-9
)

// Hit is a bounded ray–plane intersection.
type Hit struct {
	Point Vec3
	// T is the segment parameter: Point = Origin + T·(Target − Origin).
	T float64
	// Plane is the index of the plane in the slice the tracer searched.
	Plane int
}

// IntersectPlane intersects the directed segment r with the bounded plane p.
// It reports false when the segment is parallel to the plane, when the hit
// lies at or behind the origin, or when it falls outside the rectangle.
func IntersectPlane(r Ray, p Plane) (Hit, bool) {
	e1, e2 := p.Edges()
	normal := e1.Cross(e2)
	dir := r.Direction()

	denom := dir.Dot(normal)
	if math.Abs(denom) < parallelEpsilon {
		return Hit{}, false
	}

	t := p.S1.Sub(r.Origin).Dot(normal) / denom
	if !(t > minHitParam) {
		return Hit{}, false
	}
	m := r.At(t)

	rel := m.Sub(p.S1)
	if !withinEdge(rel.Dot(e1), e1.Dot(e1)) || !withinEdge(rel.Dot(e2), e2.Dot(e2)) {
		return Hit{}, false
	}
	return Hit{Point: m, T: t}, true
}

func withinEdge(proj, edgeSq float64) bool {
	slack := boundsSlack * math.Max(1, edgeSq)
	return proj >= -slack && proj <= edgeSq+slack
}

// nearestHit returns the bounded hit closest to r's origin, skipping the
// plane at index skip. Ties keep the lowest plane index.
func nearestHit(r Ray, planes []Plane, skip int) (Hit, bool) {
	best := Hit{Plane: -1}
	bestDist := math.Inf(1)
	for i, p := range planes {
		if i == skip {
			continue
		}
		h, ok := IntersectPlane(r, p)
		if !ok {
			continue
		}
		if d := h.Point.DistanceTo(r.Origin); d < bestDist {
			bestDist = d
			h.Plane = i
			best = h
		}
	}
	return best, best.Plane >= 0
}
