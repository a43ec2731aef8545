// Package config provides configuration management for callmeter.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("callmeter.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("callmeter.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLMETER_SECTION_FIELD:
//
//   - CALLMETER_CLIENT_METRICS_MAX_ALLOWED overrides client_metrics.max_allowed
//   - CALLMETER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CALLMETER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// FileWatcher watches the configuration file with fsnotify and calls a
// reload function once per burst of writes. ReloadConfig swaps the global
// instance and returns the previous one so callers can apply the difference.
// Guard settings under client_metrics are fixed once the instrumenter is
// built; a reload can only report that they changed.
//
// # Example Configuration
//
//	client_metrics:
//	  metric_name: http.client.requests
//	  guarded_label_key: uri
//	  max_allowed: 100
//
//	probes:
//	  schedule: "@every 30s"
//	  targets:
//	    - name: users
//	      url: https://api.example.com/users/42
//	      route: /users/{id}
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  metrics:
//	    backend: prometheus
package config
