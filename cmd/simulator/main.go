package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/multipath-simulator/core"
	"github.com/signalsfoundry/multipath-simulator/internal/logging"
	"github.com/signalsfoundry/multipath-simulator/internal/observability"
	"github.com/signalsfoundry/multipath-simulator/internal/render"
	"github.com/signalsfoundry/multipath-simulator/kb"
	"github.com/signalsfoundry/multipath-simulator/timectrl"
)

type options struct {
	scenario     string
	legacyConfig string
	legacyRoom   string
	mode         string
	out          string
	workers      int
	metricsAddr  string
	scale        float64
	progress     time.Duration
	tracing      observability.TracingConfig
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.scenario, "scenario", "", "Path to a JSON or YAML scenario file")
	fs.StringVar(&opts.legacyConfig, "legacy-config", "", "Path to a key: value config file (used with -legacy-room)")
	fs.StringVar(&opts.legacyRoom, "legacy-room", "", "Path to a wall list file, one (x1, y1), (x2, y2) per line")
	fs.StringVar(&opts.mode, "mode", "receiver", "Run mode: receiver or grid")
	fs.StringVar(&opts.out, "out", "image.png", "Output PNG path; empty disables rendering")
	fs.IntVar(&opts.workers, "workers", 0, "Worker goroutines; 0 uses the scenario value or NumCPU")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	fs.Float64Var(&opts.scale, "scale", 20, "Pixels per metre in the rendered image")
	fs.DurationVar(&opts.progress, "progress", 2*time.Second, "Interval between progress log lines")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch {
	case opts.scenario == "" && opts.legacyConfig == "":
		return options{}, errors.New("one of -scenario or -legacy-config is required")
	case opts.scenario != "" && opts.legacyConfig != "":
		return options{}, errors.New("-scenario and -legacy-config are mutually exclusive")
	case opts.legacyConfig != "" && opts.legacyRoom == "":
		return options{}, errors.New("-legacy-config requires -legacy-room")
	}
	if opts.mode != "receiver" && opts.mode != "grid" {
		return options{}, fmt.Errorf("unknown -mode %q", opts.mode)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	opts.tracing = observability.TracingConfigFromEnv()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log logging.Logger) error {
	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sc, err := loadScenario(opts)
	if err != nil {
		return err
	}

	ctx, runLog := logging.WithRunLogger(ctx, log)
	runID := logging.RunIDFromContext(ctx)

	store := kb.NewResultStore()
	unsubscribe := store.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventResultStored {
			return
		}
		runLog.Debug(ctx, "receiver resolved",
			logging.String("receiver", e.Result.Receiver.String()),
			logging.String("quality", string(e.Result.Quality)),
			logging.Float64("best_power_dbm", e.Result.BestPowerDBm),
		)
	})
	defer unsubscribe()

	engine, err := core.NewSimulationEngine(sc.Scene, sc.Params,
		core.WithWorkers(opts.workers),
		core.WithMetricsRecorder(collector),
		core.WithResultSink(store),
		core.WithLogger(runLog),
	)
	if err != nil {
		return err
	}
	fingerprint := sc.Scene.Fingerprint()
	runLog.Info(ctx, "scene ready",
		logging.Int("planes", len(engine.Planes())),
		logging.Int("rays", len(engine.Rays())),
		logging.String("mode", opts.mode),
		logging.Any("scene_fingerprint", fmt.Sprintf("%016x", fingerprint)),
	)

	tracing, err := observability.StartRunTracing(ctx, opts.tracing, observability.RunInfo{
		RunID:            runID,
		Mode:             opts.mode,
		SceneFingerprint: fingerprint,
		Planes:           len(engine.Planes()),
		Rays:             len(engine.Rays()),
	}, runLog)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Close(context.Background())

	hbCtx, hbCancel := context.WithCancel(ctx)
	hb := timectrl.NewHeartbeat(opts.progress)
	hb.AddListener(func(beat int, _ time.Time) {
		done, total := engine.Progress()
		runLog.Info(ctx, "progress",
			logging.Int("beat", beat),
			logging.Int("done", int(done)),
			logging.Int("total", int(total)),
		)
	})
	hbDone := hb.Start(hbCtx)
	defer func() {
		hbCancel()
		<-hbDone
	}()

	frame := render.Frame{
		Width:       sc.Params.RoomWidthM,
		Height:      sc.Params.RoomHeightM,
		Walls:       sc.Scene.Walls,
		Rooms:       sc.Scene.Rooms,
		Transmitter: engine.Transmitter(),
	}

	switch opts.mode {
	case "grid":
		cov, err := engine.RunGrid(ctx)
		if err != nil {
			return err
		}
		frame.Coverage = cov
		fields := []logging.Field{logging.Int("cells", store.Count(runID))}
		for q, n := range store.Summary(runID) {
			fields = append(fields, logging.Int(string(q), n))
		}
		if lo, hi, ok := cov.PowerRangeDBm(); ok {
			fields = append(fields, logging.Float64("min_dbm", lo), logging.Float64("max_dbm", hi))
		}
		runLog.Info(ctx, "coverage summary", fields...)
	default:
		res, err := engine.RunFixedReceiver(ctx)
		if err != nil {
			return err
		}
		frame.Result = res
		logReceiver(ctx, runLog, res)
	}

	if opts.out == "" {
		return nil
	}
	return writeImage(opts.out, frame, opts.scale)
}

func loadScenario(opts options) (*core.Scenario, error) {
	if opts.scenario != "" {
		f, err := os.Open(opts.scenario)
		if err != nil {
			return nil, fmt.Errorf("open scenario %q: %w", opts.scenario, err)
		}
		defer f.Close()
		return core.LoadScenario(f, core.FormatFromPath(opts.scenario))
	}

	cfg, err := os.Open(opts.legacyConfig)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", opts.legacyConfig, err)
	}
	defer cfg.Close()
	room, err := os.Open(opts.legacyRoom)
	if err != nil {
		return nil, fmt.Errorf("open room %q: %w", opts.legacyRoom, err)
	}
	defer room.Close()
	return core.LoadLegacyScenario(cfg, room)
}

func logReceiver(ctx context.Context, log logging.Logger, res *core.ReceiverResult) {
	log.Info(ctx, "receiver summary",
		logging.String("receiver", res.Receiver.String()),
		logging.String("quality", string(res.Quality)),
		logging.Float64("best_power_dbm", res.BestPowerDBm),
		logging.Int("paths", len(res.Paths)),
		logging.Int("converged", res.Converged),
		logging.Int("escaped", res.Escaped),
		logging.Int("cutoff", res.Cutoff),
		logging.Int("bounce_cap", res.BounceCap),
	)
	for i, p := range res.Paths {
		log.Info(ctx, "path",
			logging.Int("rank", i),
			logging.Int("ray", p.RayIndex),
			logging.Int("bounces", p.Bounces),
			logging.Float64("closest_approach_m", p.ClosestApproach),
			logging.Float64("path_length_m", p.PathLength),
			logging.Float64("power_w", p.PowerW),
			logging.Float64("power_dbm", p.PowerDBm),
		)
	}
}

func writeImage(path string, frame render.Frame, scale float64) error {
	img, err := render.Draw(frame, scale)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := render.WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
