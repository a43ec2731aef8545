package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/telemetry/health"
	"mercator-hq/callmeter/pkg/telemetry/logging"
	"mercator-hq/callmeter/pkg/telemetry/metrics"
	"mercator-hq/callmeter/pkg/telemetry/tracing"
)

// Telemetry bundles the logger, tracer, metrics collector and health checker
// built from one TelemetryConfig.
type Telemetry struct {
	config  *config.TelemetryConfig
	version health.VersionInfo

	logger  *logging.Logger
	tracer  *tracing.Tracer
	metrics *metrics.Collector
	health  *health.Checker
}

// Option configures New.
type Option func(*options)

type options struct {
	logWriter      io.Writer
	metricsOptions []metrics.CollectorOption
	tracingOptions []tracing.Option
}

// WithLogWriter sends log output to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithMetricsOptions passes opts to metrics.NewCollector.
func WithMetricsOptions(opts ...metrics.CollectorOption) Option {
	return func(o *options) {
		o.metricsOptions = append(o.metricsOptions, opts...)
	}
}

// WithTracingOptions passes opts to tracing.New.
func WithTracingOptions(opts ...tracing.Option) Option {
	return func(o *options) {
		o.tracingOptions = append(o.tracingOptions, opts...)
	}
}

// New initializes every telemetry component from cfg.
func New(ctx context.Context, cfg *config.TelemetryConfig, version health.VersionInfo, opts ...Option) (*Telemetry, error) {
	if cfg == nil {
		return nil, errors.New("telemetry config is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Redact:    cfg.Logging.Redact,
		Writer:    o.logWriter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracingOpts := append([]tracing.Option{tracing.WithServiceVersion(version.Version)}, o.tracingOptions...)
	tracer, err := tracing.New(&cfg.Tracing, tracingOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	metricsOpts := append([]metrics.CollectorOption{
		metrics.WithServiceInfo(cfg.Tracing.ServiceName, version.Version),
	}, o.metricsOptions...)
	collector, err := metrics.NewCollector(ctx, &cfg.Metrics, nil, metricsOpts...)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	return &Telemetry{
		config:  cfg,
		version: version,
		logger:  logger,
		tracer:  tracer,
		metrics: collector,
		health:  health.New(cfg.Health.CheckTimeout),
	}, nil
}

// Logger returns the structured logger.
func (t *Telemetry) Logger() *logging.Logger { return t.logger }

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Mount registers the enabled metrics and health endpoints on mux.
func (t *Telemetry) Mount(mux *http.ServeMux) {
	if t.config.Metrics.Enabled {
		mux.Handle(t.config.Metrics.Path, t.metrics.Handler())
	}
	if t.config.Health.Enabled {
		health.Mount(mux, t.health, &t.config.Health, t.version)
	}
}

// Shutdown flushes spans and metrics. Errors from every component are
// returned together.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.tracer.Shutdown(ctx),
		t.metrics.Shutdown(ctx),
	)
}
