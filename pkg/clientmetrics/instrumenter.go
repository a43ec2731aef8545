package clientmetrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNoResponse is the failure recorded when an Execute returns neither a
// response nor an error.
var ErrNoResponse = errors.New("call returned neither a response nor an error")

// errAborted is recorded when the calling goroutine exits inside Execute
// without panicking (runtime.Goexit).
var errAborted = errors.New("call aborted")

// PanicError carries the value of a panic raised inside an Execute. It is only
// used for labeling; the original panic value is re-raised to the caller.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during call: %v", e.Value)
}

// Execute performs the real network call.
type Execute func(ctx context.Context) (*http.Response, error)

// Instrumenter times calls and records them into a Registry, gated by a Guard.
type Instrumenter struct {
	metricName string
	guard      *Guard
	registry   Registry
	extractor  TagExtractor
	tracer     trace.Tracer

	denied         atomic.Int64
	recordFailures atomic.Int64
}

// Option configures an Instrumenter.
type Option func(*Instrumenter)

// WithTagExtractor replaces DefaultTagExtractor.
func WithTagExtractor(e TagExtractor) Option {
	return func(in *Instrumenter) {
		if e != nil {
			in.extractor = e
		}
	}
}

// WithTracer opens a client span per call on t.
func WithTracer(t trace.Tracer) Option {
	return func(in *Instrumenter) {
		if t != nil {
			in.tracer = t
		}
	}
}

// NewInstrumenter creates an instrumenter recording metricName samples into
// registry after admission by guard.
func NewInstrumenter(metricName string, guard *Guard, registry Registry, opts ...Option) (*Instrumenter, error) {
	if metricName == "" {
		return nil, errors.New("metric name is required")
	}
	if guard == nil {
		return nil, errors.New("cardinality guard is required")
	}
	if registry == nil {
		registry = Discard
	}

	in := &Instrumenter{
		metricName: metricName,
		guard:      guard,
		registry:   registry,
		extractor:  DefaultTagExtractor{},
		tracer:     noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// MetricName returns the metric family this instrumenter records.
func (in *Instrumenter) MetricName() string { return in.metricName }

// Guard returns the guard gating this instrumenter.
func (in *Instrumenter) Guard() *Guard { return in.guard }

// Denied returns the number of samples dropped by the guard.
func (in *Instrumenter) Denied() int64 { return in.denied.Load() }

// RecordFailures returns the number of registry writes that panicked.
func (in *Instrumenter) RecordFailures() int64 { return in.recordFailures.Load() }

// Instrument runs execute, then records its duration and labels exactly once
// on every exit path. The response, error, or panic of execute reaches the
// caller unchanged.
func (in *Instrumenter) Instrument(ctx context.Context, req RequestDescriptor, execute Execute) (resp *http.Response, err error) {
	ctx, span := in.tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.template", req.RouteTemplate),
			attribute.String("server.address", req.Host),
		),
	)

	completed := false
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)

		var outcome CallOutcome
		var panicked any
		switch {
		case !completed:
			panicked = recover()
			if panicked != nil {
				outcome = ClientError(&PanicError{Value: panicked})
			} else {
				outcome = ClientError(errAborted)
			}
		case err != nil:
			outcome = ClientError(err)
		case resp == nil:
			outcome = ClientError(ErrNoResponse)
		default:
			outcome = Success(resp)
		}

		in.complete(req, outcome, elapsed)
		endSpan(span, outcome)

		if panicked != nil {
			panic(panicked)
		}
	}()

	resp, err = execute(ctx)
	completed = true
	return resp, err
}

// complete labels, admits and records one finished call.
func (in *Instrumenter) complete(req RequestDescriptor, outcome CallOutcome, elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}

	labels := in.extract(req, outcome)
	if !in.guard.Admit(in.metricName, labels) {
		in.denied.Add(1)
		return
	}
	if !recordSafely(in.registry, in.metricName, labels, elapsed) {
		in.recordFailures.Add(1)
	}
}

// extract runs the extractor, degrading to all-UNKNOWN labels on panic.
func (in *Instrumenter) extract(req RequestDescriptor, outcome CallOutcome) (labels LabelSet) {
	defer func() {
		if recover() != nil {
			labels = unknownLabels()
		}
	}()
	return in.extractor.Extract(req, outcome)
}

// recordSafely writes one sample and reports false if the registry panicked.
func recordSafely(r Registry, metricName string, labels LabelSet, d time.Duration) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	r.RecordTiming(metricName, labels, d)
	return true
}

func endSpan(span trace.Span, outcome CallOutcome) {
	switch outcome.Kind() {
	case OutcomeSuccess:
		code := outcome.StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", code))
		if code >= 400 {
			span.SetStatus(codes.Error, http.StatusText(code))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	case OutcomeClientError:
		if err := outcome.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
