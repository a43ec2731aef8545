package config

import "time"

// Default values for configuration fields.
const (
	// Client metrics defaults
	DefaultClientMetricsEnabled = true
	DefaultMetricName           = "http.client.requests"
	DefaultGuardedLabelKey      = "uri"
	DefaultMaxAllowed           = 100

	// Probe defaults
	DefaultProbeSchedule = "@every 30s"
	DefaultProbeTimeout  = 10 * time.Second
	DefaultProbeMethod   = "GET"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9464"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedact       = true
	DefaultMetricsEnabled      = true
	DefaultMetricsBackend      = "prometheus"
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "callmeter"
	DefaultOTLPInsecure        = true
	DefaultOTLPPushInterval    = 15 * time.Second
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 0.1
	DefaultTracingExporter     = "otlp"
	DefaultTracingServiceName  = "callmeter"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// Metric backends accepted by telemetry.metrics.backend.
const (
	BackendPrometheus = "prometheus"
	BackendOTel       = "otel"
	BackendMemory     = "memory"
)

// DefaultDurationBuckets returns the default histogram buckets (seconds) for
// outbound call durations.
func DefaultDurationBuckets() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// NewDefaultConfig returns a Config with every default applied, including
// the boolean switches that default to true. LoadConfig decodes YAML on top
// of it so an omitted "enabled" key keeps its default.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.ClientMetrics.Enabled = DefaultClientMetricsEnabled
	cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Metrics.OTLP.Insecure = DefaultOTLPInsecure
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = DefaultOTLPInsecure
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Client metrics defaults
	if cfg.ClientMetrics.MetricName == "" {
		cfg.ClientMetrics.MetricName = DefaultMetricName
	}
	if cfg.ClientMetrics.GuardedLabelKey == "" {
		cfg.ClientMetrics.GuardedLabelKey = DefaultGuardedLabelKey
	}
	if cfg.ClientMetrics.MaxAllowed == 0 {
		cfg.ClientMetrics.MaxAllowed = DefaultMaxAllowed
	}

	applyProbeDefaults(cfg)

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Backend == "" {
		cfg.Telemetry.Metrics.Backend = DefaultMetricsBackend
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = DefaultDurationBuckets()
	}
	if cfg.Telemetry.Metrics.OTLP.PushInterval == 0 {
		cfg.Telemetry.Metrics.OTLP.PushInterval = DefaultOTLPPushInterval
	}

	applyTracingDefaults(cfg)

	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}

// applyProbeDefaults applies default values to the probe schedule and targets.
func applyProbeDefaults(cfg *Config) {
	if cfg.Probes.Schedule == "" {
		cfg.Probes.Schedule = DefaultProbeSchedule
	}
	if cfg.Probes.Timeout == 0 {
		cfg.Probes.Timeout = DefaultProbeTimeout
	}
	for i := range cfg.Probes.Targets {
		target := &cfg.Probes.Targets[i]
		if target.Method == "" {
			target.Method = DefaultProbeMethod
		}
		if target.Name == "" {
			target.Name = target.URL
		}
	}
}

// applyTracingDefaults applies default values to tracing configuration.
func applyTracingDefaults(cfg *Config) {
	tracing := &cfg.Telemetry.Tracing
	if tracing.Sampler == "" {
		tracing.Sampler = DefaultTracingSampler
	}
	if tracing.SampleRatio == 0 && tracing.Sampler == "ratio" {
		tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if tracing.Exporter == "" {
		tracing.Exporter = DefaultTracingExporter
	}
	if tracing.ServiceName == "" {
		tracing.ServiceName = DefaultTracingServiceName
	}
	if tracing.OTLP.Timeout == 0 {
		tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}
