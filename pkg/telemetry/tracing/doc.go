// Package tracing provides OpenTelemetry distributed tracing for callmeter.
//
// # Overview
//
// New builds an SDK tracer provider with an OTLP gRPC exporter, installs it
// and the W3C trace context propagator globally, and returns a Tracer. When
// tracing is disabled the Tracer hands out no-op spans.
//
// The client metrics instrumenter opens one client span per outbound call
// when given Tracer.Tracer(), and its transport injects the traceparent
// header through the global propagator:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	defer tracer.Shutdown(ctx)
//
//	inst, err := clientmetrics.New(opts, clientmetrics.WithTracer(tracer.Tracer()))
//
// # Sampling Strategies
//
//   - always: sample all traces
//   - never: sample no traces
//   - ratio: sample a fraction of traces by trace ID hash
//
// All strategies respect the parent span's decision.
package tracing
