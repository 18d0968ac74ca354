package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams wraps every simulation parameter validation failure.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Position is a point in the room volume, in metres.
type Position struct {
	X float64
	Y float64
	Z float64
}

// SimulationParams holds the scalar inputs of a run. It is loaded once and
// treated as read-only afterwards.
type SimulationParams struct {
	FrequencyHz float64
	CeilingM    float64
	RoomWidthM  float64
	RoomHeightM float64

	// Linear antenna gains and transmit power in watts.
	TxGain   float64
	RxGain   float64
	TxPowerW float64

	TxPosition Position
	// RxPosition is the fixed receiver; nil means only grid runs are
	// possible.
	RxPosition *Position

	// SampleDensity is N: the generator emits N² rays.
	SampleDensity int

	// Tracer limits. Zero selects the engine defaults.
	ProximityThresholdM float64
	CutoffDistanceM     float64
	MaxBounces          int

	// GridStepM is the receiver grid spacing for coverage runs.
	GridStepM float64
	// Workers bounds engine parallelism; 0 means one per CPU.
	Workers int
}

// Defaults returns parameters for a 2.4 GHz, 1 mW isotropic link in a
// 10 m × 10 m × 3 m room.
func Defaults() SimulationParams {
	return SimulationParams{
		FrequencyHz:   2.4e9,
		CeilingM:      3,
		RoomWidthM:    10,
		RoomHeightM:   10,
		TxGain:        1,
		RxGain:        1,
		TxPowerW:      0.001,
		TxPosition:    Position{X: 5, Y: 5, Z: 1},
		SampleDensity: 100,
		GridStepM:     1,
	}
}

// MaxSampleDensity bounds N so a typo cannot request an unbounded N² ray grid.
const MaxSampleDensity = 2000

// Validate checks every parameter and names the first offending one.
func (p SimulationParams) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"frequency", p.FrequencyHz},
		{"ceiling", p.CeilingM},
		{"room_w", p.RoomWidthM},
		{"room_h", p.RoomHeightM},
		{"t_gain", p.TxGain},
		{"r_gain", p.RxGain},
		{"t_power", p.TxPowerW},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be a positive finite number, got %g", ErrInvalidParams, f.name, f.v)
		}
	}

	if p.SampleDensity <= 0 {
		return fmt.Errorf("%w: sample density must be positive, got %d", ErrInvalidParams, p.SampleDensity)
	}
	if p.SampleDensity > MaxSampleDensity {
		return fmt.Errorf("%w: sample density must be at most %d, got %d", ErrInvalidParams, MaxSampleDensity, p.SampleDensity)
	}
	if p.ProximityThresholdM < 0 || p.CutoffDistanceM < 0 || p.GridStepM < 0 {
		return fmt.Errorf("%w: tracer limits and grid step must not be negative", ErrInvalidParams)
	}
	if p.MaxBounces < 0 || p.Workers < 0 {
		return fmt.Errorf("%w: max bounces and workers must not be negative", ErrInvalidParams)
	}

	if err := p.checkInside("t_pos", p.TxPosition); err != nil {
		return err
	}
	if p.RxPosition != nil {
		if err := p.checkInside("r_pos", *p.RxPosition); err != nil {
			return err
		}
	}
	return nil
}

func (p SimulationParams) checkInside(name string, pos Position) error {
	for _, v := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s has a non-finite coordinate", ErrInvalidParams, name)
		}
	}
	if pos.Z < 0 || pos.Z > p.CeilingM {
		return fmt.Errorf("%w: %s height %g outside [0, %g]", ErrInvalidParams, name, pos.Z, p.CeilingM)
	}
	return nil
}
