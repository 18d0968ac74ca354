package core

import (
	"fmt"

	"github.com/signalsfoundry/multipath-simulator/model"
)

// LinkBudget describes the radio side of a run: transmit power, linear
// antenna gains and carrier frequency.
type LinkBudget struct {
	TxPowerW    float64
	TxGain      float64
	RxGain      float64
	FrequencyHz float64
}

// LinkBudgetFromParams extracts the radio parameters of a run.
func LinkBudgetFromParams(p model.SimulationParams) LinkBudget {
	return LinkBudget{
		TxPowerW:    p.TxPowerW,
		TxGain:      p.TxGain,
		RxGain:      p.RxGain,
		FrequencyHz: p.FrequencyHz,
	}
}

// Wavelength returns the carrier wavelength in metres.
func (lb LinkBudget) Wavelength() float64 {
	return Wavelength(lb.FrequencyHz)
}

// ReceivedPowerW applies the Friis equation to a path of the given length.
// Paths shorter than one wavelength are evaluated at one wavelength, the
// near-field edge where the free-space model stops applying.
func (lb LinkBudget) ReceivedPowerW(pathLength float64) (float64, error) {
	lambda := lb.Wavelength()
	if pathLength < lambda {
		pathLength = lambda
	}
	pr, err := Friis(lb.TxPowerW, lb.TxGain, lb.RxGain, lambda, pathLength)
	if err != nil {
		return 0, fmt.Errorf("ReceivedPowerW: %w", err)
	}
	return pr, nil
}
