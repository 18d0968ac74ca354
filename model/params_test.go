package model

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v, want nil", err)
	}
}

func TestValidateNamesOffendingParameter(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SimulationParams)
		want   string
	}{
		{"frequency", func(p *SimulationParams) { p.FrequencyHz = 0 }, "frequency"},
		{"ceiling", func(p *SimulationParams) { p.CeilingM = -1 }, "ceiling"},
		{"room width", func(p *SimulationParams) { p.RoomWidthM = math.Inf(1) }, "room_w"},
		{"rx gain", func(p *SimulationParams) { p.RxGain = math.NaN() }, "r_gain"},
		{"power", func(p *SimulationParams) { p.TxPowerW = 0 }, "t_power"},
		{"density", func(p *SimulationParams) { p.SampleDensity = 0 }, "density"},
		{"density too large", func(p *SimulationParams) { p.SampleDensity = MaxSampleDensity + 1 }, "at most 2000"},
		{"negative cutoff", func(p *SimulationParams) { p.CutoffDistanceM = -5 }, "tracer limits"},
		{"negative workers", func(p *SimulationParams) { p.Workers = -1 }, "workers"},
		{"tx above ceiling", func(p *SimulationParams) { p.TxPosition.Z = 4 }, "t_pos"},
		{"rx below floor", func(p *SimulationParams) { p.RxPosition = &Position{X: 1, Y: 1, Z: -0.1} }, "r_pos"},
		{"rx not finite", func(p *SimulationParams) { p.RxPosition = &Position{X: math.NaN()} }, "r_pos"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Defaults()
			tc.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("Validate() = %v, want ErrInvalidParams", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %q, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsBoundaryHeights(t *testing.T) {
	p := Defaults()
	p.TxPosition.Z = 0
	p.RxPosition = &Position{X: 2, Y: 2, Z: p.CeilingM}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}
