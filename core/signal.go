package core

import (
	"errors"
	"fmt"
	"math"
)

// SpeedOfLight in metres per second.
const SpeedOfLight = 299_792_458.0

// ErrZeroDistance is returned by Friis for a zero path length.
var ErrZeroDistance = errors.New("path distance must be non-zero")

// Wavelength returns the free-space wavelength in metres for a frequency in
// hertz.
func Wavelength(freqHz float64) float64 {
	return SpeedOfLight / freqHz
}

// Friis returns the received power for a free-space path of length d:
//
//	Pr = Pt·Gt·Gr·(λ / 4πd)²
//
// Gains are linear and the result carries the unit of pt.
func Friis(pt, gt, gr, lambda, d float64) (float64, error) {
	if d == 0 {
		return 0, fmt.Errorf("Friis: %w", ErrZeroDistance)
	}
	f := lambda / (4 * math.Pi * d)
	return pt * gt * gr * f * f, nil
}

// FreeSpacePathLossDB returns 20·log10(4πd/λ) for d metres at freqHz.
func FreeSpacePathLossDB(d, freqHz float64) float64 {
	return 20 * math.Log10(4*math.Pi*d/Wavelength(freqHz))
}

// WattsToDBm converts a power in watts to dBm. Non-positive powers map to
// -Inf.
func WattsToDBm(w float64) float64 {
	if w <= 0 {
		return math.Inf(-1)
	}
	return 10*math.Log10(w) + 30
}
