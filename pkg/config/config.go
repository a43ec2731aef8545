package config

import "time"

// Config is the root configuration structure for callmeter.
// It contains the client metrics guard settings, the synthetic probe
// schedule, the operator HTTP server, and telemetry settings.
type Config struct {
	// ClientMetrics configures the instrumented HTTP client: the metric
	// name, the guarded label key, and its cardinality cap.
	ClientMetrics ClientMetricsConfig `yaml:"client_metrics"`

	// Probes contains the synthetic probe schedule and targets.
	Probes ProbesConfig `yaml:"probes"`

	// Server contains the operator HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing, and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ClientMetricsConfig contains configuration for outbound call instrumentation.
type ClientMetricsConfig struct {
	// Enabled controls whether outbound calls are recorded at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// MetricName is the name samples are recorded under.
	// Default: "http.client.requests"
	MetricName string `yaml:"metric_name"`

	// GuardedLabelKey is the label whose distinct values are capped.
	// Default: "uri"
	GuardedLabelKey string `yaml:"guarded_label_key"`

	// MaxAllowed is the maximum number of distinct values tracked for
	// GuardedLabelKey. Samples introducing further values are dropped.
	// Default: 100
	MaxAllowed int `yaml:"max_allowed"`
}

// ProbesConfig contains configuration for scheduled synthetic probes.
type ProbesConfig struct {
	// Schedule is a cron expression or descriptor (e.g. "@every 30s").
	// Default: "@every 30s"
	Schedule string `yaml:"schedule"`

	// Timeout bounds each probe request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Targets lists the endpoints probed on every run.
	Targets []ProbeTarget `yaml:"targets"`
}

// ProbeTarget is a single synthetic probe endpoint.
type ProbeTarget struct {
	// Name identifies the target in logs and output.
	Name string `yaml:"name"`

	// Method is the HTTP method. Default: "GET"
	Method string `yaml:"method"`

	// URL is the fully expanded request URL.
	URL string `yaml:"url"`

	// Route is the URI template recorded as the uri label, e.g. "/users/{id}".
	// When empty the request path is recorded instead.
	Route string `yaml:"route"`

	// Headers are added to every probe request.
	Headers map[string]string `yaml:"headers"`
}

// ServerConfig contains configuration for the operator HTTP server.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests on shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics backend configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact masks URL credentials and secret query parameters in log values.
	// Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig contains metrics backend configuration.
type MetricsConfig struct {
	// Enabled controls whether samples are exported to a backend.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the registry samples are recorded into.
	// Options: "prometheus", "otel", "memory"
	// Default: "prometheus"
	Backend string `yaml:"backend"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "callmeter"
	Namespace string `yaml:"namespace"`

	// DurationBuckets defines histogram buckets for call duration (seconds).
	// Default: [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// OTLP contains the OpenTelemetry metric exporter settings used by the
	// "otel" backend.
	OTLP MetricsOTLPConfig `yaml:"otlp"`
}

// MetricsOTLPConfig contains OTLP metric exporter configuration.
type MetricsOTLPConfig struct {
	// Endpoint is the collector address, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// PushInterval is how often metrics are pushed to the collector.
	// Default: 15s
	PushInterval time.Duration `yaml:"push_interval"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "otlp"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the trace collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "callmeter"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
