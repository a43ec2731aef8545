package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a new ConfigBuilder with a valid default config and
// one probe target.
func NewTestConfig() *ConfigBuilder {
	cfg := NewDefaultConfig()
	cfg.Probes.Targets = []ProbeTarget{{
		Name:   "users",
		Method: "GET",
		URL:    "https://api.example.com/users/42",
		Route:  "/users/{id}",
	}}
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithMaxAllowed sets the guard cap.
func (b *ConfigBuilder) WithMaxAllowed(n int) *ConfigBuilder {
	b.cfg.ClientMetrics.MaxAllowed = n
	return b
}

// WithBackend sets the metrics backend.
func (b *ConfigBuilder) WithBackend(backend string) *ConfigBuilder {
	b.cfg.Telemetry.Metrics.Backend = backend
	return b
}

// WithSchedule sets the probe schedule.
func (b *ConfigBuilder) WithSchedule(schedule string) *ConfigBuilder {
	b.cfg.Probes.Schedule = schedule
	return b
}

// WithTarget appends a probe target.
func (b *ConfigBuilder) WithTarget(target ProbeTarget) *ConfigBuilder {
	b.cfg.Probes.Targets = append(b.cfg.Probes.Targets, target)
	return b
}

// WithServerTimeouts sets the server read and write timeouts.
func (b *ConfigBuilder) WithServerTimeouts(read, write time.Duration) *ConfigBuilder {
	b.cfg.Server.ReadTimeout = read
	b.cfg.Server.WriteTimeout = write
	return b
}

// MinimalConfig returns the smallest valid configuration.
func MinimalConfig() *Config {
	return NewDefaultConfig()
}
