// Package telemetry provides observability for callmeter.
//
// # Components
//
//   - logging: structured logging with credential redaction
//   - metrics: client timing backends and operational Prometheus metrics
//   - tracing: OpenTelemetry distributed tracing
//   - health: liveness and readiness endpoints
//
// # Usage
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry, health.NewVersionInfo(version, commit, date))
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tel.Logger().Info("starting", "targets", len(cfg.Probes.Targets))
//	tel.Mount(mux)
package telemetry
