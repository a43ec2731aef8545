// Package metrics provides the backends client timings are recorded to and
// callmeter's own Prometheus metrics.
//
// # Overview
//
// Every backend implements clientmetrics.Registry:
//
//   - PrometheusRegistry: one histogram per metric name, named
//     <namespace>_<metric_name>_seconds with dots replaced by underscores
//   - OTelRegistry: one Float64Histogram (unit "s") per metric name on an
//     OpenTelemetry meter, pushed over OTLP gRPC by NewOTelProvider
//   - MemoryRegistry: in-process count, total and max per label set, with
//     Query and JSON lines Export
//
// Collector selects the backend from configuration and keeps operational
// metrics on a Prometheus registry.
//
// # Metrics Categories
//
//   - Client Metrics: <ns>_http_client_requests_seconds (prometheus backend)
//   - Guard Metrics: tracked values, max values and denied samples per metric
//   - Dropped Samples: samples the Prometheus backend could not record
//   - Probe Metrics: runs, duration and last success per probe target
//
// # Usage
//
//	collector, err := metrics.NewCollector(ctx, &cfg.Telemetry.Metrics, nil)
//	if err != nil {
//		return err
//	}
//
//	inst, err := clientmetrics.New(clientmetrics.Options{
//		MaxAllowed: 100,
//		Registry:   collector.Backend(),
//	})
//	if err != nil {
//		return err
//	}
//	_ = collector.ObserveGuard(inst.Guard())
//
//	http.Handle("/metrics", collector.Handler())
package metrics
