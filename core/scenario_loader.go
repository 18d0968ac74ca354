// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/multipath-simulator/model"
)

// Scenario is a fully resolved run description: the floor plan plus the
// scalar parameters.
type Scenario struct {
	Scene  Scene
	Params model.SimulationParams
}

// Format selects a scenario file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the encoding from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// internal file shapes – unexported so the on-disk format can evolve
// independently of the model.
type scenarioFile struct {
	Frequency float64      `json:"frequency" yaml:"frequency"`
	Ceiling   float64      `json:"ceiling" yaml:"ceiling"`
	RoomW     float64      `json:"room_w" yaml:"room_w"`
	RoomH     float64      `json:"room_h" yaml:"room_h"`
	TxGain    float64      `json:"t_gain" yaml:"t_gain"`
	RxGain    float64      `json:"r_gain" yaml:"r_gain"`
	TxPower   float64      `json:"t_power" yaml:"t_power"`
	TxPos     *pointFile   `json:"t_pos" yaml:"t_pos"`
	RxPos     *pointFile   `json:"r_pos,omitempty" yaml:"r_pos,omitempty"`
	Density   int          `json:"density" yaml:"density"`
	Tracer    tracerFile   `json:"tracer" yaml:"tracer"`
	GridStep  float64      `json:"grid_step,omitempty" yaml:"grid_step,omitempty"`
	Workers   int          `json:"workers,omitempty" yaml:"workers,omitempty"`
	Walls     [][2]pointXY `json:"walls" yaml:"walls"`
	Rooms     [][4]pointXY `json:"rooms,omitempty" yaml:"rooms,omitempty"`
}

type tracerFile struct {
	Proximity  float64 `json:"proximity,omitempty" yaml:"proximity,omitempty"`
	Cutoff     float64 `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	MaxBounces int     `json:"max_bounces,omitempty" yaml:"max_bounces,omitempty"`
}

type pointFile struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

type pointXY struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// LoadScenario decodes a JSON or YAML scenario from r and validates it.
// Omitted t_power, density and grid_step take the model defaults. When
// no room outlines are given, the bounding room [0,room_w]×[0,room_h] is used
// for the floor and ceiling.
func LoadScenario(r io.Reader, format Format) (*Scenario, error) {
	var payload scenarioFile
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadScenario: yaml decode failed: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadScenario: json decode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("LoadScenario: unsupported format %q", format)
	}

	if payload.TxPos == nil {
		return nil, fmt.Errorf("LoadScenario: t_pos is required")
	}

	params := model.SimulationParams{
		FrequencyHz:         payload.Frequency,
		CeilingM:            payload.Ceiling,
		RoomWidthM:          payload.RoomW,
		RoomHeightM:         payload.RoomH,
		TxGain:              payload.TxGain,
		RxGain:              payload.RxGain,
		TxPowerW:            payload.TxPower,
		TxPosition:          model.Position(*payload.TxPos),
		SampleDensity:       payload.Density,
		ProximityThresholdM: payload.Tracer.Proximity,
		CutoffDistanceM:     payload.Tracer.Cutoff,
		MaxBounces:          payload.Tracer.MaxBounces,
		GridStepM:           payload.GridStep,
		Workers:             payload.Workers,
	}
	defaults := model.Defaults()
	if params.TxPowerW == 0 {
		params.TxPowerW = defaults.TxPowerW
	}
	if params.SampleDensity == 0 {
		params.SampleDensity = defaults.SampleDensity
	}
	if params.GridStepM == 0 {
		params.GridStepM = defaults.GridStepM
	}
	if payload.RxPos != nil {
		rx := model.Position(*payload.RxPos)
		params.RxPosition = &rx
	}

	scene := Scene{Ceiling: payload.Ceiling}
	for _, w := range payload.Walls {
		scene.Walls = append(scene.Walls, Wall{A: Vec2(w[0]), B: Vec2(w[1])})
	}
	for _, rm := range payload.Rooms {
		var room Room
		for i, c := range rm {
			room.Corners[i] = Vec2(c)
		}
		scene.Rooms = append(scene.Rooms, room)
	}

	return finishScenario(scene, params, "LoadScenario")
}

// finishScenario fills the bounding room when none is given and validates
// both halves of the scenario before any tracing starts.
func finishScenario(scene Scene, params model.SimulationParams, op string) (*Scenario, error) {
	if len(scene.Rooms) == 0 && params.RoomWidthM > 0 && params.RoomHeightM > 0 {
		scene.Rooms = []Room{BoundingRoom(params.RoomWidthM, params.RoomHeightM)}
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := scene.Planes(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Scenario{Scene: scene, Params: params}, nil
}
