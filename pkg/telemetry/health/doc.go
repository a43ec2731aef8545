// Package health provides liveness and readiness endpoints for callmeter.
//
// # Endpoints
//
//   - liveness (default /health): the process is serving HTTP
//   - readiness (default /ready): every registered check passes
//   - /version: build information
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("config", health.ConfigCheck(config.GetConfig))
//	checker.RegisterCheck("probes", scheduler.Check)
//
//	health.Mount(mux, checker, &cfg.Telemetry.Health, health.NewVersionInfo(version, commit, buildTime))
//
// Checks run concurrently, each bounded by the checker timeout. Readiness
// answers 503 while any check is unhealthy.
package health
