package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/multipath-simulator/model"
)

const jsonScenario = `{
  "frequency": 5e9,
  "ceiling": 3,
  "room_w": 12,
  "room_h": 8,
  "t_gain": 2,
  "r_gain": 1.5,
  "t_pos": {"x": 1, "y": 2, "z": 1},
  "r_pos": {"x": 10, "y": 6, "z": 1.2},
  "density": 40,
  "tracer": {"proximity": 0.25, "max_bounces": 8},
  "walls": [
    [{"x": 6, "y": 0}, {"x": 6, "y": 5}]
  ]
}`

const yamlScenario = `
frequency: 2.4e9
ceiling: 2.5
room_w: 6
room_h: 4
t_gain: 1
r_gain: 1
t_power: 0.1
t_pos: {x: 1, y: 1, z: 1}
grid_step: 0.5
workers: 3
walls:
  - [{x: 0, y: 0}, {x: 6, y: 0}]
rooms:
  - [{x: 0, y: 0}, {x: 3, y: 0}, {x: 3, y: 4}, {x: 0, y: 4}]
`

func TestLoadScenarioJSON(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(jsonScenario), FormatJSON)
	require.NoError(t, err)

	p := sc.Params
	require.Equal(t, 5e9, p.FrequencyHz)
	require.Equal(t, model.Position{X: 1, Y: 2, Z: 1}, p.TxPosition)
	require.NotNil(t, p.RxPosition)
	require.Equal(t, 1.2, p.RxPosition.Z)
	require.Equal(t, 40, p.SampleDensity)
	require.Equal(t, 0.25, p.ProximityThresholdM)
	require.Equal(t, 8, p.MaxBounces)
	require.Equal(t, model.Defaults().TxPowerW, p.TxPowerW)
	require.Equal(t, model.Defaults().GridStepM, p.GridStepM)

	require.Len(t, sc.Scene.Walls, 1)
	require.Len(t, sc.Scene.Rooms, 1, "bounding room is added when none are given")
	require.Equal(t, BoundingRoom(12, 8), sc.Scene.Rooms[0])

	planes, err := sc.Scene.Planes()
	require.NoError(t, err)
	require.Len(t, planes, 3)
}

func TestLoadScenarioYAML(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(yamlScenario), FormatYAML)
	require.NoError(t, err)

	require.Nil(t, sc.Params.RxPosition)
	require.Equal(t, 0.1, sc.Params.TxPowerW)
	require.Equal(t, 0.5, sc.Params.GridStepM)
	require.Equal(t, 3, sc.Params.Workers)
	require.Equal(t, model.Defaults().SampleDensity, sc.Params.SampleDensity)
	require.Len(t, sc.Scene.Rooms, 1)
	require.Equal(t, Vec2{X: 3, Y: 4}, sc.Scene.Rooms[0].Corners[2])
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		format Format
		target error
	}{
		{"unknown field", `{"frequency": 1, "bogus": 2}`, FormatJSON, nil},
		{"unknown yaml field", yamlScenario + "bogus: 2\n", FormatYAML, nil},
		{"unknown yaml tracer field", yamlScenario + "tracer:\n  proximty: 0.3\n", FormatYAML, nil},
		{"missing t_pos", `{"frequency": 1e9, "ceiling": 3, "room_w": 4, "room_h": 4, "t_gain": 1, "r_gain": 1}`, FormatJSON, nil},
		{"transmitter above ceiling", `{"frequency": 1e9, "ceiling": 3, "room_w": 4, "room_h": 4, "t_gain": 1, "r_gain": 1, "t_pos": {"x": 1, "y": 1, "z": 4}}`, FormatJSON, model.ErrInvalidParams},
		{"zero frequency", `{"ceiling": 3, "room_w": 4, "room_h": 4, "t_gain": 1, "r_gain": 1, "t_pos": {"x": 1, "y": 1, "z": 1}}`, FormatJSON, model.ErrInvalidParams},
		{"degenerate wall", "frequency: 1e9\nceiling: 3\nroom_w: 4\nroom_h: 4\nt_gain: 1\nr_gain: 1\nt_pos: {x: 1, y: 1, z: 1}\nwalls:\n  - [{x: 1, y: 1}, {x: 1, y: 1}]\n", FormatYAML, ErrInvalidGeometry},
		{"bad yaml", "frequency: [", FormatYAML, nil},
		{"unsupported format", `{}`, Format("toml"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(strings.NewReader(tc.body), tc.format)
			require.Error(t, err)
			if tc.target != nil {
				require.True(t, errors.Is(err, tc.target), "error %v should wrap %v", err, tc.target)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	require.Equal(t, FormatYAML, FormatFromPath("office.YML"))
	require.Equal(t, FormatYAML, FormatFromPath("dir/office.yaml"))
	require.Equal(t, FormatJSON, FormatFromPath("office.json"))
	require.Equal(t, FormatJSON, FormatFromPath("office"))
}

const legacyConfigText = `frequency: 2400000000
ceiling: 3
room_w: 45
room_h: 30
t_gain: 1
r_gain: 1
t_angle: 0
# transmitter and receiver
t_pos: (39, 19, 0.45)
r_pos: (5, 25, 0.45)
`

const legacyRoomText = `(0, 0), (45, 0)
(45, 0), (45, 30)

(45, 30), (0, 30)
(0, 30), (0, 0)
`

func TestLoadLegacyScenario(t *testing.T) {
	sc, err := LoadLegacyScenario(strings.NewReader(legacyConfigText), strings.NewReader(legacyRoomText))
	require.NoError(t, err)

	require.Equal(t, 2.4e9, sc.Params.FrequencyHz)
	require.Equal(t, model.Position{X: 39, Y: 19, Z: 0.45}, sc.Params.TxPosition)
	require.Equal(t, &model.Position{X: 5, Y: 25, Z: 0.45}, sc.Params.RxPosition)
	require.Equal(t, model.Defaults().SampleDensity, sc.Params.SampleDensity)

	require.Len(t, sc.Scene.Walls, 4)
	require.Equal(t, Wall{A: Vec2{X: 45, Y: 0}, B: Vec2{X: 45, Y: 30}}, sc.Scene.Walls[1])
	require.Equal(t, 3.0, sc.Scene.Ceiling)
	require.Len(t, sc.Scene.Rooms, 1)
}

func TestLoadLegacyScenarioMissingKey(t *testing.T) {
	cfg := strings.Replace(legacyConfigText, "room_h: 30\n", "", 1)
	_, err := LoadLegacyScenario(strings.NewReader(cfg), strings.NewReader(legacyRoomText))
	require.ErrorContains(t, err, "no value in config for <room_h>")

	cfg = strings.Replace(legacyConfigText, "t_pos: (39, 19, 0.45)\n", "", 1)
	_, err = LoadLegacyScenario(strings.NewReader(cfg), strings.NewReader(legacyRoomText))
	require.ErrorContains(t, err, "no value in config for <t_pos>")
}

func TestLoadLegacyScenarioMalformed(t *testing.T) {
	cases := []struct {
		name, cfg, room string
	}{
		{"config without colon", "frequency 2400000000\n", legacyRoomText},
		{"config bad number", strings.Replace(legacyConfigText, "ceiling: 3", "ceiling: three", 1), legacyRoomText},
		{"config short tuple", strings.Replace(legacyConfigText, "(39, 19, 0.45)", "(39, 19)", 1), legacyRoomText},
		{"room missing separator", legacyConfigText, "(0, 0) (45, 0)\n"},
		{"room three components", legacyConfigText, "(0, 0, 1), (45, 0)\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadLegacyScenario(strings.NewReader(tc.cfg), strings.NewReader(tc.room))
			require.Error(t, err)
		})
	}
}

func TestLoadLegacyScenarioIntegerKeys(t *testing.T) {
	cases := []struct {
		name, extra, want string
	}{
		{"fractional density", "density: 2.5\n", "density must be a whole number"},
		{"fractional bounces", "max_bounces: 3.7\n", "max_bounces must be a whole number"},
		{"oversized density", "density: 100000\n", "sample density must be at most"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadLegacyScenario(strings.NewReader(legacyConfigText+tc.extra), strings.NewReader(legacyRoomText))
			require.ErrorContains(t, err, tc.want)
		})
	}

	sc, err := LoadLegacyScenario(strings.NewReader(legacyConfigText+"density: 40.0\nmax_bounces: 7\n"), strings.NewReader(legacyRoomText))
	require.NoError(t, err)
	require.Equal(t, 40, sc.Params.SampleDensity)
	require.Equal(t, 7, sc.Params.MaxBounces)
}
