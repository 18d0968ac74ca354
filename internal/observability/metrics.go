package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/multipath-simulator/core"
)

var _ core.MetricsRecorder = (*SimCollector)(nil)

// SimCollector bundles Prometheus metrics for simulation runs and satisfies
// core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	RaysTraced    prometheus.Counter
	TraceOutcomes *prometheus.CounterVec
	Receivers     *prometheus.CounterVec
	RunDurations  *prometheus.HistogramVec

	ScenePlanes prometheus.Gauge
	SceneRays   prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rays, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "multipath_rays_traced_total",
		Help: "Total number of (ray, receiver) traces run.",
	}), "multipath_rays_traced_total")
	if err != nil {
		return nil, err
	}

	outcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multipath_trace_outcomes_total",
		Help: "Trace terminal outcomes, labeled converged, escaped, cutoff or bounce_cap.",
	}, []string{"outcome"}), "multipath_trace_outcomes_total")
	if err != nil {
		return nil, err
	}

	receivers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multipath_receivers_evaluated_total",
		Help: "Receiver locations evaluated, labeled by link quality bucket.",
	}, []string{"quality"}), "multipath_receivers_evaluated_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "multipath_run_duration_seconds",
		Help:    "Simulation run latency in seconds, labeled by mode and result.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"mode", "result"}), "multipath_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	planes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "multipath_scene_planes",
		Help: "Number of bounded planes in the loaded scene.",
	}), "multipath_scene_planes")
	if err != nil {
		return nil, err
	}
	sceneRays, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "multipath_scene_rays",
		Help: "Number of rays generated per receiver evaluation.",
	}), "multipath_scene_rays")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:      gatherer,
		RaysTraced:    rays,
		TraceOutcomes: outcomes,
		Receivers:     receivers,
		RunDurations:  durations,
		ScenePlanes:   planes,
		SceneRays:     sceneRays,
	}, nil
}

// SetSceneSize records the static scene dimensions.
func (c *SimCollector) SetSceneSize(planes, rays int) {
	if c == nil {
		return
	}
	c.ScenePlanes.Set(float64(planes))
	c.SceneRays.Set(float64(rays))
}

// ObserveReceiver adds one receiver's trace tallies.
func (c *SimCollector) ObserveReceiver(res *core.ReceiverResult) {
	if c == nil || res == nil {
		return
	}
	total := res.Converged + res.Escaped + res.Cutoff + res.BounceCap
	c.RaysTraced.Add(float64(total))
	c.TraceOutcomes.WithLabelValues("converged").Add(float64(res.Converged))
	c.TraceOutcomes.WithLabelValues(core.AbortEscaped.String()).Add(float64(res.Escaped))
	c.TraceOutcomes.WithLabelValues(core.AbortCutoff.String()).Add(float64(res.Cutoff))
	c.TraceOutcomes.WithLabelValues(core.AbortBounceCap.String()).Add(float64(res.BounceCap))
	c.Receivers.WithLabelValues(string(res.Quality)).Inc()
}

// ObserveRun records a finished run.
func (c *SimCollector) ObserveRun(mode string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.RunDurations.WithLabelValues(mode, result).Observe(elapsed.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
