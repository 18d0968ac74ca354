package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/multipath-simulator/internal/logging"
	"github.com/signalsfoundry/multipath-simulator/model"
)

// ErrNoReceiver is returned by RunFixedReceiver when the parameters carry no
// receiver position.
var ErrNoReceiver = errors.New("no receiver position configured")

const tracerName = "github.com/signalsfoundry/multipath-simulator/core"

// MetricsRecorder receives run statistics. Implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	SetSceneSize(planes, rays int)
	ObserveReceiver(res *ReceiverResult)
	ObserveRun(mode string, elapsed time.Duration, err error)
}

// ResultSink is handed every receiver result as soon as it is resolved.
// Implementations must be safe for concurrent use.
type ResultSink interface {
	PutResult(runID string, res ReceiverResult)
}

// EngineOption customises a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithWorkers bounds parallelism. n <= 0 falls back to params.Workers, then
// to one worker per CPU.
func WithWorkers(n int) EngineOption {
	return func(se *SimulationEngine) { se.workers = n }
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) EngineOption {
	return func(se *SimulationEngine) { se.metrics = m }
}

// WithResultSink attaches a sink for receiver results.
func WithResultSink(s ResultSink) EngineOption {
	return func(se *SimulationEngine) { se.sink = s }
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// SimulationEngine owns the static scene of a run: planes and rays are built
// once and shared read-only by every trace.
type SimulationEngine struct {
	Scene  Scene
	Params model.SimulationParams
	Budget LinkBudget

	planes []Plane
	rays   []Ray
	tracer *Tracer

	workers int
	metrics MetricsRecorder
	sink    ResultSink
	log     logging.Logger

	done  atomic.Int64
	total atomic.Int64
}

// NewSimulationEngine validates the parameters and builds planes and rays.
// A zero scene ceiling is taken from the parameters.
func NewSimulationEngine(scene Scene, params model.SimulationParams, opts ...EngineOption) (*SimulationEngine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("NewSimulationEngine: %w", err)
	}
	if scene.Ceiling == 0 {
		scene.Ceiling = params.CeilingM
	}

	se := &SimulationEngine{
		Scene:  scene,
		Params: params,
		Budget: LinkBudgetFromParams(params),
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(se)
	}
	if se.workers <= 0 {
		se.workers = params.Workers
	}
	if se.workers <= 0 {
		se.workers = runtime.NumCPU()
	}

	planes, err := scene.Planes()
	if err != nil {
		return nil, fmt.Errorf("NewSimulationEngine: %w", err)
	}
	tracer, err := NewTracer(planes, params.ProximityThresholdM, params.CutoffDistanceM, params.MaxBounces)
	if err != nil {
		return nil, fmt.Errorf("NewSimulationEngine: %w", err)
	}
	rays, err := GenerateRays(toVec3(params.TxPosition), params.SampleDensity)
	if err != nil {
		return nil, fmt.Errorf("NewSimulationEngine: %w", err)
	}

	se.planes = planes
	se.tracer = tracer
	se.rays = rays
	if se.metrics != nil {
		se.metrics.SetSceneSize(len(planes), len(rays))
	}
	return se, nil
}

// Planes returns the bounded planes of the scene.
func (se *SimulationEngine) Planes() []Plane { return se.planes }

// Rays returns the generated rays.
func (se *SimulationEngine) Rays() []Ray { return se.rays }

// Tracer returns the shared tracer.
func (se *SimulationEngine) Tracer() *Tracer { return se.tracer }

// Transmitter returns the transmitter position.
func (se *SimulationEngine) Transmitter() Vec3 { return toVec3(se.Params.TxPosition) }

// Progress reports how many receiver locations of the current run are done.
func (se *SimulationEngine) Progress() (done, total int64) {
	return se.done.Load(), se.total.Load()
}

// RunFixedReceiver traces every ray against the configured receiver.
func (se *SimulationEngine) RunFixedReceiver(ctx context.Context) (*ReceiverResult, error) {
	if se.Params.RxPosition == nil {
		return nil, fmt.Errorf("RunFixedReceiver: %w", ErrNoReceiver)
	}
	return se.RunReceiver(ctx, toVec3(*se.Params.RxPosition))
}

// RunReceiver traces every ray against rx. Rays are split into contiguous
// chunks, one per worker; the per-chunk best sets are merged in ray order so
// the result does not depend on scheduling.
func (se *SimulationEngine) RunReceiver(ctx context.Context, rx Vec3) (res *ReceiverResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SimulationEngine.RunReceiver",
		trace.WithAttributes(
			attribute.Int("rays", len(se.rays)),
			attribute.Int("planes", len(se.planes)),
			attribute.String("receiver", rx.String()),
		))
	start := time.Now()
	defer func() { se.finishRun(span, "receiver", start, err) }()

	se.done.Store(0)
	se.total.Store(1)

	chunks := se.workers
	if chunks > len(se.rays) {
		chunks = len(se.rays)
	}
	size := (len(se.rays) + chunks - 1) / chunks
	partial := make([]traceTally, chunks)

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < chunks; c++ {
		c := c
		lo := c * size
		hi := min(lo+size, len(se.rays))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial[c] = se.traceRange(rx, lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("RunReceiver: %w", err)
	}

	var tally traceTally
	for i := range partial {
		tally.merge(&partial[i])
	}
	out, err := se.finishReceiver(ctx, rx, &tally, -1, -1)
	if err != nil {
		return nil, fmt.Errorf("RunReceiver: %w", err)
	}
	se.done.Store(1)
	return &out, nil
}

// GridDims returns the number of receiver cells along x and y for a step.
func GridDims(width, height, step float64) (nx, ny int) {
	nx = int(math.Ceil(width/step - 1e-9))
	ny = int(math.Ceil(height/step - 1e-9))
	return max(nx, 1), max(ny, 1)
}

// RunGrid evaluates a receiver at the centre of every grid cell over the room
// footprint. Receivers sit at the fixed receiver's height, or at the
// transmitter's height when no receiver is configured. Each cell is written
// by exactly one worker.
func (se *SimulationEngine) RunGrid(ctx context.Context) (cov *CoverageMap, err error) {
	step := se.Params.GridStepM
	if step <= 0 {
		step = 1
	}
	nx, ny := GridDims(se.Params.RoomWidthM, se.Params.RoomHeightM, step)
	z := se.Params.TxPosition.Z
	if se.Params.RxPosition != nil {
		z = se.Params.RxPosition.Z
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "SimulationEngine.RunGrid",
		trace.WithAttributes(
			attribute.Int("rays", len(se.rays)),
			attribute.Int("planes", len(se.planes)),
			attribute.Int("cells", nx*ny),
			attribute.Float64("step_m", step),
		))
	start := time.Now()
	defer func() { se.finishRun(span, "grid", start, err) }()

	cov = &CoverageMap{
		Width:  nx,
		Height: ny,
		Step:   step,
		Z:      z,
		Cells:  make([]ReceiverResult, nx*ny),
	}
	se.done.Store(0)
	se.total.Store(int64(nx * ny))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(se.workers)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			ix, iy := ix, iy
			idx := iy*nx + ix
			rx := Vec3{X: (float64(ix) + 0.5) * step, Y: (float64(iy) + 0.5) * step, Z: z}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				tally := se.traceRange(rx, 0, len(se.rays))
				res, err := se.finishReceiver(gctx, rx, &tally, ix, iy)
				if err != nil {
					return err
				}
				cov.Cells[idx] = res
				se.done.Add(1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("RunGrid: %w", err)
	}

	se.log.Info(ctx, "coverage grid complete",
		logging.Int("cells", nx*ny),
		logging.Duration("elapsed", time.Since(start)),
	)
	return cov, nil
}

// traceTally is the per-worker accumulator of a receiver evaluation.
type traceTally struct {
	best      BestPaths
	converged int
	escaped   int
	cutoff    int
	bounceCap int
}

func (t *traceTally) merge(other *traceTally) {
	t.best.Merge(&other.best)
	t.converged += other.converged
	t.escaped += other.escaped
	t.cutoff += other.cutoff
	t.bounceCap += other.bounceCap
}

func (se *SimulationEngine) traceRange(rx Vec3, lo, hi int) traceTally {
	var t traceTally
	for i := lo; i < hi; i++ {
		r := se.tracer.Trace(se.rays[i], rx)
		switch {
		case r.Converged():
			t.converged++
			c := r.Candidate
			c.RayIndex = i
			t.best.Insert(c)
		case r.Reason == AbortEscaped:
			t.escaped++
		case r.Reason == AbortCutoff:
			t.cutoff++
		case r.Reason == AbortBounceCap:
			t.bounceCap++
		}
	}
	return t
}

func (se *SimulationEngine) finishReceiver(ctx context.Context, rx Vec3, t *traceTally, ix, iy int) (ReceiverResult, error) {
	res, err := resolve(rx, &t.best, se.Budget)
	if err != nil {
		return ReceiverResult{}, err
	}
	res.GridX, res.GridY = ix, iy
	res.Converged = t.converged
	res.Escaped = t.escaped
	res.Cutoff = t.cutoff
	res.BounceCap = t.bounceCap

	if se.metrics != nil {
		se.metrics.ObserveReceiver(&res)
	}
	if se.sink != nil {
		se.sink.PutResult(logging.RunIDFromContext(ctx), res)
	}
	return res, nil
}

func (se *SimulationEngine) finishRun(span trace.Span, mode string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if se.metrics != nil {
		se.metrics.ObserveRun(mode, time.Since(start), err)
	}
}

func toVec3(p model.Position) Vec3 {
	return Vec3{X: p.X, Y: p.Y, Z: p.Z}
}
