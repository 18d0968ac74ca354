package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/multipath-simulator/internal/logging"
)

// ServiceName is reported as service.name on every exported span.
const ServiceName = "multipath-simulator"

const (
	defaultOTLPEndpoint = "localhost:4317"
	closeTimeout        = 5 * time.Second
)

// TracingConfig selects where run spans go. An empty Exporter disables
// tracing.
type TracingConfig struct {
	Exporter    string // "", stdout or otlp
	Endpoint    string // OTLP/gRPC collector address
	SampleRatio float64
	// Output receives stdout-exporter spans; os.Stderr when nil so traces
	// never interleave with piped results.
	Output io.Writer
}

// Enabled reports whether an exporter is configured.
func (c TracingConfig) Enabled() bool { return c.Exporter != "" && c.Exporter != "off" }

// TracingConfigFromEnv reads MPSIM_TRACE (off|stdout|otlp),
// MPSIM_TRACE_ENDPOINT and MPSIM_TRACE_RATIO. A ratio outside [0, 1] is
// ignored.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Exporter:    strings.ToLower(strings.TrimSpace(os.Getenv("MPSIM_TRACE"))),
		Endpoint:    os.Getenv("MPSIM_TRACE_ENDPOINT"),
		SampleRatio: 1,
	}
	if raw := os.Getenv("MPSIM_TRACE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

// RunInfo identifies one simulation run. Its fields become resource
// attributes, so every span of the run carries them.
type RunInfo struct {
	RunID            string
	Mode             string
	SceneFingerprint uint64
	Planes           int
	Rays             int
}

func (r RunInfo) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", ServiceName),
		attribute.String("mpsim.run.id", r.RunID),
		attribute.String("mpsim.run.mode", r.Mode),
		attribute.String("mpsim.scene.fingerprint", fmt.Sprintf("%016x", r.SceneFingerprint)),
		attribute.Int("mpsim.scene.planes", r.Planes),
		attribute.Int("mpsim.scene.rays", r.Rays),
	}
}

// RunTracing owns the tracer provider installed for a single run.
type RunTracing struct {
	tp  *sdktrace.TracerProvider
	log logging.Logger
}

// StartRunTracing installs a global tracer provider scoped to run. When
// tracing is disabled a noop provider is installed and Close does nothing.
func StartRunTracing(ctx context.Context, cfg TracingConfig, run RunInfo, log logging.Logger) (*RunTracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &RunTracing{log: log}, nil
	}

	exp, batch, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		sdktrace.WithResource(resource.NewSchemaless(run.attributes()...)),
	}
	if batch {
		opts = append(opts, sdktrace.WithBatcher(exp))
	} else {
		opts = append(opts, sdktrace.WithSyncer(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return &RunTracing{tp: tp, log: log}, nil
}

// newExporter also reports whether spans should be batched; the stdout
// exporter writes synchronously so a short run never loses its spans.
func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, bool, error) {
	switch cfg.Exporter {
	case "stdout":
		w := cfg.Output
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
		return exp, false, err
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
		return exp, true, err
	default:
		return nil, false, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

// Close flushes pending spans, giving up after a few seconds. Failures are
// logged, not returned; a run's result does not depend on its traces.
func (r *RunTracing) Close(ctx context.Context) {
	if r == nil || r.tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := r.tp.Shutdown(ctx); err != nil {
		r.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
