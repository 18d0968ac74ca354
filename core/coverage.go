package core

import "math"

// LinkQuality buckets received power into coarse coverage classes.
type LinkQuality string

const (
	LinkQualityDown      LinkQuality = "DOWN"
	LinkQualityPoor      LinkQuality = "POOR"
	LinkQualityFair      LinkQuality = "FAIR"
	LinkQualityGood      LinkQuality = "GOOD"
	LinkQualityExcellent LinkQuality = "EXCELLENT"
)

// AllLinkQualities lists the buckets from worst to best.
var AllLinkQualities = []LinkQuality{
	LinkQualityDown,
	LinkQualityPoor,
	LinkQualityFair,
	LinkQualityGood,
	LinkQualityExcellent,
}

// ClassifyPowerDBm maps a received power to a quality bucket. Thresholds
// follow common Wi-Fi RSSI rules of thumb.
func ClassifyPowerDBm(dbm float64) LinkQuality {
	switch {
	case math.IsNaN(dbm) || dbm < -90:
		return LinkQualityDown
	case dbm < -75:
		return LinkQualityPoor
	case dbm < -65:
		return LinkQualityFair
	case dbm < -50:
		return LinkQualityGood
	default:
		return LinkQualityExcellent
	}
}

// ResolvedPath is a path candidate with its received power.
type ResolvedPath struct {
	PathCandidate
	PowerW   float64
	PowerDBm float64
}

// ReceiverResult is the outcome of tracing every ray against one receiver
// location.
type ReceiverResult struct {
	Receiver Vec3
	// GridX, GridY locate the receiver in a coverage grid; both are -1
	// for a single fixed receiver.
	GridX, GridY int

	// Paths holds at most BestPathCapacity entries, ascending by
	// closest approach.
	Paths []ResolvedPath

	// BestPowerDBm is the received power of the closest path, -Inf when
	// nothing converged.
	BestPowerDBm float64
	Quality      LinkQuality

	Converged int
	Escaped   int
	Cutoff    int
	BounceCap int
}

// CoverageMap is a receiver grid over the room footprint, row-major by Y.
type CoverageMap struct {
	Width, Height int
	Step          float64
	Z             float64
	Cells         []ReceiverResult
}

// At returns the result at grid index (ix, iy).
func (c *CoverageMap) At(ix, iy int) *ReceiverResult {
	if ix < 0 || iy < 0 || ix >= c.Width || iy >= c.Height {
		return nil
	}
	return &c.Cells[iy*c.Width+ix]
}

// Summary counts cells per quality bucket.
func (c *CoverageMap) Summary() map[LinkQuality]int {
	out := make(map[LinkQuality]int, len(AllLinkQualities))
	for _, q := range AllLinkQualities {
		out[q] = 0
	}
	for i := range c.Cells {
		out[c.Cells[i].Quality]++
	}
	return out
}

// PowerRangeDBm returns the min and max finite best power over the grid.
// ok is false when no cell received anything.
func (c *CoverageMap) PowerRangeDBm() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range c.Cells {
		p := c.Cells[i].BestPowerDBm
		if math.IsInf(p, 0) || math.IsNaN(p) {
			continue
		}
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
		ok = true
	}
	return lo, hi, ok
}

// resolve converts the best-path set into a receiver result.
func resolve(rx Vec3, best *BestPaths, lb LinkBudget) (ReceiverResult, error) {
	res := ReceiverResult{
		Receiver:     rx,
		GridX:        -1,
		GridY:        -1,
		BestPowerDBm: math.Inf(-1),
		Quality:      LinkQualityDown,
	}
	for _, c := range best.Paths() {
		pw, err := lb.ReceivedPowerW(c.PathLength)
		if err != nil {
			return ReceiverResult{}, err
		}
		res.Paths = append(res.Paths, ResolvedPath{
			PathCandidate: c,
			PowerW:        pw,
			PowerDBm:      WattsToDBm(pw),
		})
	}
	if len(res.Paths) > 0 {
		res.BestPowerDBm = res.Paths[0].PowerDBm
		res.Quality = ClassifyPowerDBm(res.BestPowerDBm)
	}
	return res, nil
}
