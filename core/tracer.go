package core

import (
	"fmt"
	"sort"
)

const (
	// DefaultMaxBounces caps the number of reflections followed per ray.
	DefaultMaxBounces = 20
	// DefaultProximityThreshold is the closest-approach distance (m) at
	// which a path counts as reaching the receiver.
	DefaultProximityThreshold = 0.5
	// DefaultCutoffDistance is the total path length (m) after which a ray
	// is abandoned.
	DefaultCutoffDistance = 150.0
	// BestPathCapacity is the number of paths kept per receiver location.
	BestPathCapacity = 3
)

// TraceState is the state of a single ray trace.
type TraceState int

const (
	StateAdvancing TraceState = iota
	StateReflecting
	StateConverged
	StateAborted
)

func (s TraceState) String() string {
	switch s {
	case StateAdvancing:
		return "advancing"
	case StateReflecting:
		return "reflecting"
	case StateConverged:
		return "converged"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("TraceState(%d)", int(s))
	}
}

// AbortReason says why a trace ended without reaching the receiver.
type AbortReason int

const (
	AbortNone AbortReason = iota
	// AbortEscaped: the ray left the scene without hitting any plane.
	AbortEscaped
	// AbortCutoff: accumulated path length reached the cutoff distance.
	AbortCutoff
	// AbortBounceCap: the reflection count reached the bounce cap.
	AbortBounceCap
)

func (r AbortReason) String() string {
	switch r {
	case AbortNone:
		return "none"
	case AbortEscaped:
		return "escaped"
	case AbortCutoff:
		return "cutoff"
	case AbortBounceCap:
		return "bounce_cap"
	default:
		return fmt.Sprintf("AbortReason(%d)", int(r))
	}
}

// PathCandidate is a traced path whose final segment passed within the
// proximity threshold of the receiver.
type PathCandidate struct {
	// Segment is the final segment, from the last reflection (or the
	// transmitter) to the next plane hit.
	Segment Ray
	// ClosestApproach is the perpendicular distance from the receiver to
	// the line through Segment.
	ClosestApproach float64
	// PathLength is the distance travelled from the transmitter to the
	// receiver's foot point on the final segment.
	PathLength float64
	// Bounces is the number of reflections before the final segment.
	Bounces int
	// RayIndex identifies the generated ray this path started from.
	RayIndex int
}

// TraceResult is the terminal outcome of Tracer.Trace.
type TraceResult struct {
	State     TraceState
	Reason    AbortReason
	Candidate PathCandidate
	Bounces   int
	Distance  float64
}

// Converged reports whether the trace produced a candidate.
func (r TraceResult) Converged() bool { return r.State == StateConverged }

// Tracer follows rays through a fixed set of planes. It holds no mutable
// state, so a single Tracer may be shared between goroutines.
type Tracer struct {
	Planes             []Plane
	ProximityThreshold float64
	CutoffDistance     float64
	MaxBounces         int

	normals []Vec3
}

// NewTracer precomputes unit normals for the planes. Zero-valued limits are
// replaced by the package defaults.
func NewTracer(planes []Plane, proximity, cutoff float64, maxBounces int) (*Tracer, error) {
	if proximity <= 0 {
		proximity = DefaultProximityThreshold
	}
	if cutoff <= 0 {
		cutoff = DefaultCutoffDistance
	}
	if maxBounces <= 0 {
		maxBounces = DefaultMaxBounces
	}
	normals := make([]Vec3, len(planes))
	for i, p := range planes {
		n, err := p.UnitNormal()
		if err != nil {
			return nil, fmt.Errorf("NewTracer: plane %d: %w", i, err)
		}
		normals[i] = n
	}
	return &Tracer{
		Planes:             planes,
		ProximityThreshold: proximity,
		CutoffDistance:     cutoff,
		MaxBounces:         maxBounces,
		normals:            normals,
	}, nil
}

// Trace follows ray until it passes close to rx, escapes the scene, exceeds
// the cutoff distance or hits the bounce cap.
func (t *Tracer) Trace(ray Ray, rx Vec3) TraceResult {
	state := StateAdvancing
	seg := ray
	last := -1
	travelled := 0.0
	bounces := 0

	for {
		switch state {
		case StateAdvancing:
			hit, ok := nearestHit(seg, t.Planes, last)
			if !ok {
				return TraceResult{State: StateAborted, Reason: AbortEscaped, Bounces: bounces, Distance: travelled}
			}
			leg := Ray{Origin: seg.Origin, Target: hit.Point}

			if d, along, ok := t.approach(rx, leg); ok {
				return TraceResult{
					State: StateConverged,
					Candidate: PathCandidate{
						Segment:         leg,
						ClosestApproach: d,
						PathLength:      travelled + along,
						Bounces:         bounces,
					},
					Bounces:  bounces,
					Distance: travelled,
				}
			}

			travelled += leg.Origin.DistanceTo(leg.Target)
			if travelled >= t.CutoffDistance {
				return TraceResult{State: StateAborted, Reason: AbortCutoff, Bounces: bounces, Distance: travelled}
			}
			if bounces >= t.MaxBounces {
				return TraceResult{State: StateAborted, Reason: AbortBounceCap, Bounces: bounces, Distance: travelled}
			}

			// Keep the incoming direction for the reflection step.
			seg = leg
			last = hit.Plane
			state = StateReflecting

		case StateReflecting:
			dir, err := seg.Direction().Normalize()
			if err != nil {
				// A zero-length leg means the hit sat on the origin;
				// there is nothing meaningful left to follow.
				return TraceResult{State: StateAborted, Reason: AbortEscaped, Bounces: bounces, Distance: travelled}
			}
			out := Reflect(dir, t.normals[last])
			seg = Ray{Origin: seg.Target, Target: seg.Target.Add(out)}
			bounces++
			state = StateAdvancing

		default:
			return TraceResult{State: state, Bounces: bounces, Distance: travelled}
		}
	}
}

// approach reports the closest-approach distance from rx to the line through
// leg and how far along leg its foot point lies. It only reports a hit when
// the foot point falls on the leg itself, between its origin and the plane it
// ends on, so receivers behind the origin or beyond a blocking plane are not
// reached.
func (t *Tracer) approach(rx Vec3, leg Ray) (dist, along float64, ok bool) {
	dist = LineDist(rx, leg.Origin, leg.Target)
	if dist >= t.ProximityThreshold {
		return dist, 0, false
	}
	along = projectOntoLine(rx, leg.Origin, leg.Target)
	if along < 0 || along > leg.Origin.DistanceTo(leg.Target) {
		return dist, along, false
	}
	return dist, along, true
}

// BestPaths keeps the BestPathCapacity candidates with the smallest closest
// approach, in ascending order with ties broken by lower RayIndex. The zero value is ready to use. A BestPaths
// is owned by a single goroutine.
type BestPaths struct {
	paths []PathCandidate
}

// ranksBefore orders candidates by closest approach, then by ray index. The
// generator emits every direction twice, so equal distances are common.
func ranksBefore(a, b PathCandidate) bool {
	if a.ClosestApproach != b.ClosestApproach {
		return a.ClosestApproach < b.ClosestApproach
	}
	return a.RayIndex < b.RayIndex
}

// Insert offers c to the set. Once full, c only displaces the current worst
// entry when it ranks before it. It reports whether c was kept.
func (b *BestPaths) Insert(c PathCandidate) bool {
	if len(b.paths) == BestPathCapacity {
		if !ranksBefore(c, b.paths[len(b.paths)-1]) {
			return false
		}
		b.paths = b.paths[:len(b.paths)-1]
	}
	idx := sort.Search(len(b.paths), func(i int) bool {
		return ranksBefore(c, b.paths[i])
	})
	b.paths = append(b.paths, PathCandidate{})
	copy(b.paths[idx+1:], b.paths[idx:])
	b.paths[idx] = c
	return true
}

// Merge inserts every candidate of other, in order.
func (b *BestPaths) Merge(other *BestPaths) {
	if other == nil {
		return
	}
	for _, c := range other.paths {
		b.Insert(c)
	}
}

// Len returns the number of stored candidates.
func (b *BestPaths) Len() int { return len(b.paths) }

// Paths returns a copy of the candidates in ascending closest-approach order.
func (b *BestPaths) Paths() []PathCandidate {
	out := make([]PathCandidate, len(b.paths))
	copy(out, b.paths)
	return out
}

// Best returns the closest candidate, if any.
func (b *BestPaths) Best() (PathCandidate, bool) {
	if len(b.paths) == 0 {
		return PathCandidate{}, false
	}
	return b.paths[0], true
}
