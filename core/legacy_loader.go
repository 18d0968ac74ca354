package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/signalsfoundry/multipath-simulator/model"
)

// legacyRequired are the config.txt keys the original tool refused to run
// without.
var legacyRequired = []string{"frequency", "ceiling", "room_w", "room_h", "t_gain", "r_gain"}

// LoadLegacyScenario reads the plain-text config and room files of the
// original tool.
//
// config.txt holds one "key: value" per line, with positions written as
// "t_pos: (x, y, z)". room.txt holds one wall per line as
// "(x1, y1), (x2, y2)". The room file carries no outlines, so the floor and
// ceiling span [0,room_w]×[0,room_h].
func LoadLegacyScenario(config, room io.Reader) (*Scenario, error) {
	params, err := parseLegacyConfig(config)
	if err != nil {
		return nil, fmt.Errorf("LoadLegacyScenario: %w", err)
	}
	walls, err := parseLegacyRoom(room)
	if err != nil {
		return nil, fmt.Errorf("LoadLegacyScenario: %w", err)
	}
	scene := Scene{Walls: walls, Ceiling: params.CeilingM}
	return finishScenario(scene, params, "LoadLegacyScenario")
}

func parseLegacyConfig(r io.Reader) (model.SimulationParams, error) {
	defaults := model.Defaults()
	params := model.SimulationParams{
		TxPowerW:      defaults.TxPowerW,
		SampleDensity: defaults.SampleDensity,
		GridStepM:     defaults.GridStepM,
	}
	seen := make(map[string]bool)
	sawTx := false

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, val, ok := strings.Cut(text, ":")
		if !ok {
			return params, fmt.Errorf("config line %d: missing ':' in %q", line, text)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		if strings.HasPrefix(val, "(") {
			xyz, err := parseTuple(val, 3)
			if err != nil {
				return params, fmt.Errorf("config line %d (%s): %w", line, key, err)
			}
			pos := model.Position{X: xyz[0], Y: xyz[1], Z: xyz[2]}
			switch key {
			case "t_pos":
				params.TxPosition = pos
				sawTx = true
			case "r_pos":
				params.RxPosition = &pos
			default:
				return params, fmt.Errorf("config line %d: unexpected position key %q", line, key)
			}
			continue
		}

		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return params, fmt.Errorf("config line %d (%s): %w", line, key, err)
		}
		seen[key] = true
		switch key {
		case "frequency":
			params.FrequencyHz = f
		case "ceiling":
			params.CeilingM = f
		case "room_w":
			params.RoomWidthM = f
		case "room_h":
			params.RoomHeightM = f
		case "t_gain":
			params.TxGain = f
		case "r_gain":
			params.RxGain = f
		case "t_power":
			params.TxPowerW = f
		case "density":
			n, err := wholeNumber(key, f)
			if err != nil {
				return params, fmt.Errorf("config line %d: %w", line, err)
			}
			params.SampleDensity = n
		case "proximity":
			params.ProximityThresholdM = f
		case "cutoff":
			params.CutoffDistanceM = f
		case "max_bounces":
			n, err := wholeNumber(key, f)
			if err != nil {
				return params, fmt.Errorf("config line %d: %w", line, err)
			}
			params.MaxBounces = n
		case "grid_step":
			params.GridStepM = f
		default:
			// t_angle and other keys are accepted and ignored.
		}
	}
	if err := sc.Err(); err != nil {
		return params, fmt.Errorf("read config: %w", err)
	}

	for _, k := range legacyRequired {
		if !seen[k] {
			return params, fmt.Errorf("no value in config for <%s>", k)
		}
	}
	if !sawTx {
		return params, fmt.Errorf("no value in config for <t_pos>")
	}
	return params, nil
}

func parseLegacyRoom(r io.Reader) ([]Wall, error) {
	var walls []Wall
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p1, p2, ok := strings.Cut(text, "),")
		if !ok {
			return nil, fmt.Errorf("room line %d: want \"(x1, y1), (x2, y2)\", got %q", line, text)
		}
		a, err := parseTuple(p1+")", 2)
		if err != nil {
			return nil, fmt.Errorf("room line %d: %w", line, err)
		}
		b, err := parseTuple(strings.TrimSpace(p2), 2)
		if err != nil {
			return nil, fmt.Errorf("room line %d: %w", line, err)
		}
		walls = append(walls, Wall{A: Vec2{X: a[0], Y: a[1]}, B: Vec2{X: b[0], Y: b[1]}})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read room: %w", err)
	}
	return walls, nil
}

// parseTuple parses "(a, b[, c])" with exactly n components.
func parseTuple(s string, n int) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("malformed tuple %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != n {
		return nil, fmt.Errorf("tuple %q has %d components, want %d", s, len(parts), n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("tuple %q: %w", s, err)
		}
		out[i] = f
	}
	return out, nil
}

// wholeNumber rejects fractional or out-of-range values for integer keys.
func wholeNumber(key string, f float64) (int, error) {
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a whole number, got %v", key, f)
	}
	return int(f), nil
}
