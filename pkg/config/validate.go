package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/callmeter/pkg/clientmetrics"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateClientMetrics(&cfg.ClientMetrics)...)
	errs = append(errs, validateProbes(&cfg.Probes)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateClientMetrics validates the guard settings.
func validateClientMetrics(cfg *ClientMetricsConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.MetricName) == "" {
		errs = append(errs, FieldError{
			Field:   "client_metrics.metric_name",
			Message: "metric name is required",
		})
	}
	if strings.TrimSpace(cfg.GuardedLabelKey) == "" {
		errs = append(errs, FieldError{
			Field:   "client_metrics.guarded_label_key",
			Message: "guarded label key is required",
		})
	} else if !slices.Contains(clientmetrics.DefaultLabelKeys, cfg.GuardedLabelKey) {
		errs = append(errs, FieldError{
			Field: "client_metrics.guarded_label_key",
			Message: fmt.Sprintf("unknown label key %q, must be one of %s",
				cfg.GuardedLabelKey, strings.Join(clientmetrics.DefaultLabelKeys, ", ")),
		})
	}
	if cfg.MaxAllowed <= 0 {
		errs = append(errs, FieldError{
			Field:   "client_metrics.max_allowed",
			Message: fmt.Sprintf("max allowed must be positive, got %d", cfg.MaxAllowed),
		})
	}

	return errs
}

var validMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

// validateProbes validates the probe schedule and every target.
func validateProbes(cfg *ProbesConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "probes.schedule",
			Message: fmt.Sprintf("invalid schedule %q: %v", cfg.Schedule, err),
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "probes.timeout",
			Message: "timeout must be non-negative",
		})
	}

	names := make(map[string]bool, len(cfg.Targets))
	for i, target := range cfg.Targets {
		prefix := fmt.Sprintf("probes.targets[%d]", i)

		if target.Name != "" {
			if names[target.Name] {
				errs = append(errs, FieldError{
					Field:   prefix + ".name",
					Message: fmt.Sprintf("duplicate target name %q", target.Name),
				})
			}
			names[target.Name] = true
		}

		if target.URL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".url",
				Message: "url is required",
			})
		} else if u, err := url.Parse(target.URL); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".url",
				Message: fmt.Sprintf("invalid url: %v", err),
			})
		} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".url",
				Message: "url must be absolute with an http or https scheme",
			})
		}

		if target.Method != "" && !validMethods[strings.ToUpper(target.Method)] {
			errs = append(errs, FieldError{
				Field:   prefix + ".method",
				Message: fmt.Sprintf("unsupported method %q", target.Method),
			})
		}

		if target.Route != "" && !strings.HasPrefix(target.Route, "/") {
			errs = append(errs, FieldError{
				Field:   prefix + ".route",
				Message: "route must start with /",
			})
		}
	}

	return errs
}

// validateServer validates the operator server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if !strings.Contains(cfg.ListenAddress, ":") {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: must be host:port", cfg.ListenAddress),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be non-negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be non-negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be non-negative"})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	errs = append(errs, validateMetrics(&cfg.Metrics)...)

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if cfg.Tracing.Sampler != "" && !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if cfg.Tracing.Exporter != "" && cfg.Tracing.Exporter != "otlp" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("unsupported exporter %q: must be 'otlp'", cfg.Tracing.Exporter),
		})
	}

	// Validate health check configuration
	if cfg.Health.Enabled {
		if cfg.Health.LivenessPath == "" || cfg.Health.LivenessPath[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.liveness_path",
				Message: "liveness path must start with /",
			})
		}
		if cfg.Health.ReadinessPath == "" || cfg.Health.ReadinessPath[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.readiness_path",
				Message: "readiness path must start with /",
			})
		}
		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
		if cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout exceeds reasonable limit (60s)",
			})
		}
	}

	return errs
}

// validateMetrics validates the metrics backend selection.
func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendPrometheus, BackendOTel, BackendMemory:
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'prometheus', 'otel', or 'memory'", cfg.Backend),
		})
	}

	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	} else if cfg.Path != "" && cfg.Path[0] != '/' {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	for i := 1; i < len(cfg.DurationBuckets); i++ {
		if cfg.DurationBuckets[i] <= cfg.DurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.Enabled && cfg.Backend == BackendOTel && cfg.OTLP.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.otlp.endpoint",
			Message: "otlp endpoint is required when the otel backend is selected",
		})
	}
	if cfg.OTLP.PushInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.otlp.push_interval",
			Message: "push interval must be non-negative",
		})
	}

	return errs
}
