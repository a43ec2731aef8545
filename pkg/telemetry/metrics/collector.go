package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/callmeter/pkg/clientmetrics"
	"mercator-hq/callmeter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
)

// Probe results recorded by RecordProbe.
const (
	ProbeResultSuccess = "success"
	ProbeResultFailure = "failure"
)

// Collector owns the metrics backend client timings are recorded to, plus
// callmeter's own operational metrics on a Prometheus registry.
//
// The configured backend decides where client timings go:
//   - prometheus: histograms on the collector's registry, served by Handler
//   - otel: histograms pushed to an OTLP collector
//   - memory: in-process aggregation, read back with Memory().Query
//
// Operational metrics (guard state, dropped samples, probe runs) always live
// on the Prometheus registry.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	backend clientmetrics.Registry
	prom    *PrometheusRegistry
	memory  *MemoryRegistry
	otel    *OTelProvider

	probeRuns     *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	probeLastOK   *prometheus.GaugeVec
}

// CollectorOption configures optional Collector behavior.
type CollectorOption func(*collectorOptions)

type collectorOptions struct {
	meter          metric.Meter
	serviceName    string
	serviceVersion string
}

// WithMeter records otel backend samples to meter instead of creating an
// OTLP meter provider.
func WithMeter(meter metric.Meter) CollectorOption {
	return func(o *collectorOptions) {
		o.meter = meter
	}
}

// WithServiceInfo sets the resource attributes of the OTLP meter provider.
func WithServiceInfo(name, version string) CollectorOption {
	return func(o *collectorOptions) {
		o.serviceName = name
		o.serviceVersion = version
	}
}

// NewCollector creates a collector for cfg. If registry is nil a new
// Prometheus registry is created.
//
// Example:
//
//	collector, err := metrics.NewCollector(ctx, &cfg.Telemetry.Metrics, nil)
//	if err != nil {
//		return err
//	}
//	defer collector.Shutdown(ctx)
//
//	inst, err := clientmetrics.New(clientmetrics.Options{Registry: collector.Backend(), ...})
func NewCollector(ctx context.Context, cfg *config.MetricsConfig, registry *prometheus.Registry, opts ...CollectorOption) (*Collector, error) {
	if cfg == nil {
		return nil, errors.New("metrics config is required")
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	o := collectorOptions{
		serviceName:    config.DefaultTracingServiceName,
		serviceVersion: "dev",
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		backend:  clientmetrics.Discard,
	}
	if err := c.registerProbeMetrics(); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		return c, nil
	}

	switch cfg.Backend {
	case config.BackendPrometheus, "":
		prom, err := NewPrometheusRegistry(registry, cfg.Namespace, cfg.DurationBuckets)
		if err != nil {
			return nil, err
		}
		c.prom = prom
		c.backend = prom

	case config.BackendOTel:
		meter := o.meter
		if meter == nil {
			provider, err := NewOTelProvider(ctx, cfg, o.serviceName, o.serviceVersion)
			if err != nil {
				return nil, err
			}
			c.otel = provider
			meter = provider.Meter()
		}
		reg, err := NewOTelRegistry(meter, cfg.DurationBuckets)
		if err != nil {
			return nil, err
		}
		c.backend = reg

	case config.BackendMemory:
		c.memory = NewMemoryRegistry()
		c.backend = c.memory

	default:
		return nil, fmt.Errorf("unknown metrics backend: %s", cfg.Backend)
	}

	return c, nil
}

func (c *Collector) registerProbeMetrics() error {
	c.probeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: "probe",
			Name:      "runs_total",
			Help:      "Synthetic probe runs by target and result",
		},
		[]string{"target", "result"},
	)
	c.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Wall time of synthetic probe runs",
			Buckets:   bucketsOrDefault(c.config.DurationBuckets),
		},
		[]string{"target"},
	)
	c.probeLastOK = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: "probe",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful probe run",
		},
		[]string{"target"},
	)

	for _, col := range []prometheus.Collector{c.probeRuns, c.probeDuration, c.probeLastOK} {
		if err := c.registry.Register(col); err != nil {
			return fmt.Errorf("failed to register probe metrics: %w", err)
		}
	}
	return nil
}

func bucketsOrDefault(buckets []float64) []float64 {
	if len(buckets) == 0 {
		return prometheus.DefBuckets
	}
	return buckets
}

// Backend returns the registry client timings should be recorded to. It
// discards samples when metrics are disabled.
func (c *Collector) Backend() clientmetrics.Registry {
	return c.backend
}

// Memory returns the in-memory registry, or nil unless the backend is memory.
func (c *Collector) Memory() *MemoryRegistry {
	return c.memory
}

// ObserveGuard exports guard's state on the Prometheus registry.
func (c *Collector) ObserveGuard(guard *clientmetrics.Guard) error {
	if guard == nil {
		return errors.New("guard is required")
	}
	if err := c.registry.Register(NewGuardCollector(c.config.Namespace, guard)); err != nil {
		return fmt.Errorf("failed to register guard collector: %w", err)
	}
	return nil
}

// RecordProbe records one synthetic probe run.
func (c *Collector) RecordProbe(target string, err error, duration time.Duration) {
	result := ProbeResultSuccess
	if err != nil {
		result = ProbeResultFailure
	}

	c.probeRuns.WithLabelValues(target, result).Inc()
	c.probeDuration.WithLabelValues(target).Observe(duration.Seconds())
	if err == nil {
		c.probeLastOK.WithLabelValues(target).SetToCurrentTime()
	}
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Shutdown flushes and stops the OTLP meter provider, if any.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.otel == nil {
		return nil
	}
	return c.otel.Shutdown(ctx)
}
