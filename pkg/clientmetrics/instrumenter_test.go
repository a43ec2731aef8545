package clientmetrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type sample struct {
	metric   string
	labels   LabelSet
	duration time.Duration
}

// recordingRegistry keeps every sample in memory.
type recordingRegistry struct {
	mu      sync.Mutex
	samples []sample
}

func (r *recordingRegistry) RecordTiming(metricName string, labels LabelSet, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample{metric: metricName, labels: labels, duration: d})
}

func (r *recordingRegistry) all() []sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sample, len(r.samples))
	copy(out, r.samples)
	return out
}

func newTestInstrumenter(t *testing.T, maxAllowed int, reg Registry, opts ...Option) (*Instrumenter, *countingLogger) {
	t.Helper()
	logger := &countingLogger{}
	inst, err := New(Options{
		MetricName:      DefaultMetricName,
		GuardedLabelKey: LabelURI,
		MaxAllowed:      maxAllowed,
		Registry:        reg,
		Logger:          logger,
	}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return inst, logger
}

func respond(code int) Execute {
	return func(ctx context.Context) (*http.Response, error) {
		return &http.Response{StatusCode: code}, nil
	}
}

func TestInstrumenter_Instrument_RecordsSamples(t *testing.T) {
	reg := &recordingRegistry{}
	inst, _ := newTestInstrumenter(t, 10, reg)

	targets := []string{"/users/{id}", "/orders/{id}", "/health"}
	for _, target := range targets {
		req := RequestDescriptor{Method: http.MethodGet, Host: "api.example.com", RouteTemplate: target}
		if _, err := inst.Instrument(context.Background(), req, respond(http.StatusOK)); err != nil {
			t.Fatalf("Instrument() error = %v", err)
		}
	}

	samples := reg.all()
	if len(samples) != len(targets) {
		t.Fatalf("recorded %d samples, want %d", len(samples), len(targets))
	}
	for i, s := range samples {
		if s.metric != "http.client.requests" {
			t.Errorf("sample %d metric = %q", i, s.metric)
		}
		if s.duration < 0 {
			t.Errorf("sample %d duration = %v, want >= 0", i, s.duration)
		}
		if uri, _ := s.labels.Get(LabelURI); uri != targets[i] {
			t.Errorf("sample %d uri = %q, want %q", i, uri, targets[i])
		}
		if status, _ := s.labels.Get(LabelStatus); status != "200" {
			t.Errorf("sample %d status = %q, want 200", i, status)
		}
	}
}

func TestInstrumenter_Instrument_Transparency(t *testing.T) {
	reg := &recordingRegistry{}
	inst, _ := newTestInstrumenter(t, 10, reg)
	req := RequestDescriptor{Method: http.MethodPost, Host: "h", RouteTemplate: "/r"}

	t.Run("response passes through", func(t *testing.T) {
		want := &http.Response{StatusCode: http.StatusAccepted}
		got, err := inst.Instrument(context.Background(), req, func(ctx context.Context) (*http.Response, error) {
			return want, nil
		})
		if err != nil || got != want {
			t.Errorf("Instrument() = (%p, %v), want (%p, nil)", got, err, want)
		}
	})

	t.Run("error passes through", func(t *testing.T) {
		want := errors.New("connection refused")
		got, err := inst.Instrument(context.Background(), req, func(ctx context.Context) (*http.Response, error) {
			return nil, want
		})
		if got != nil || err != want {
			t.Errorf("Instrument() = (%v, %v), want (nil, %v)", got, err, want)
		}
	})

	t.Run("panic passes through", func(t *testing.T) {
		type marker struct{ id int }
		want := marker{id: 7}
		defer func() {
			got := recover()
			if got != want {
				t.Errorf("recovered %v, want %v", got, want)
			}
		}()
		_, _ = inst.Instrument(context.Background(), req, func(ctx context.Context) (*http.Response, error) {
			panic(want)
		})
		t.Error("Instrument() returned instead of panicking")
	})

	samples := reg.all()
	if len(samples) != 3 {
		t.Fatalf("recorded %d samples, want exactly one per call (3)", len(samples))
	}
	wantException := []string{ExceptionNone, "errorString", "Panic"}
	for i, s := range samples {
		if exc, _ := s.labels.Get(LabelException); exc != wantException[i] {
			t.Errorf("sample %d exception = %q, want %q", i, exc, wantException[i])
		}
	}
}

func TestInstrumenter_Instrument_OutcomeResolution(t *testing.T) {
	tests := []struct {
		name       string
		execute    Execute
		wantStatus string
	}{
		{name: "response", execute: respond(http.StatusNoContent), wantStatus: "204"},
		{name: "error", execute: func(ctx context.Context) (*http.Response, error) {
			return nil, context.Canceled
		}, wantStatus: StatusClientError},
		{name: "error with response", execute: func(ctx context.Context) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusFound}, errors.New("stopped after redirects")
		}, wantStatus: StatusClientError},
		{name: "neither", execute: func(ctx context.Context) (*http.Response, error) {
			return nil, nil
		}, wantStatus: StatusClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &recordingRegistry{}
			inst, _ := newTestInstrumenter(t, 10, reg)
			_, _ = inst.Instrument(context.Background(), RequestDescriptor{Method: "GET", RouteTemplate: "/"}, tt.execute)

			samples := reg.all()
			if len(samples) != 1 {
				t.Fatalf("recorded %d samples, want 1", len(samples))
			}
			if status, _ := samples[0].labels.Get(LabelStatus); status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if samples[0].duration < 0 {
				t.Errorf("duration = %v, want >= 0", samples[0].duration)
			}
		})
	}
}

func TestInstrumenter_Instrument_MeasuresDuration(t *testing.T) {
	reg := &recordingRegistry{}
	inst, _ := newTestInstrumenter(t, 10, reg)

	_, _ = inst.Instrument(context.Background(), RequestDescriptor{Method: "GET", RouteTemplate: "/slow"}, func(ctx context.Context) (*http.Response, error) {
		time.Sleep(20 * time.Millisecond)
		return &http.Response{StatusCode: http.StatusOK}, nil
	})

	samples := reg.all()
	if len(samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(samples))
	}
	if samples[0].duration < 20*time.Millisecond {
		t.Errorf("duration = %v, want >= 20ms", samples[0].duration)
	}
}

func TestInstrumenter_Instrument_GuardDropsSamples(t *testing.T) {
	reg := &recordingRegistry{}
	inst, logger := newTestInstrumenter(t, 2, reg)

	for _, target := range []string{"A", "B", "A", "C", "D"} {
		req := RequestDescriptor{Method: "GET", Host: "h", RouteTemplate: target}
		resp, err := inst.Instrument(context.Background(), req, respond(http.StatusOK))
		if err != nil || resp == nil {
			t.Fatalf("Instrument(%s) changed the call result: %v, %v", target, resp, err)
		}
	}

	if got := len(reg.all()); got != 3 {
		t.Errorf("recorded %d samples, want 3", got)
	}
	if inst.Denied() != 2 {
		t.Errorf("Denied() = %d, want 2", inst.Denied())
	}
	if n := logger.warnings.Load(); n != 1 {
		t.Errorf("warnings = %d, want 1", n)
	}
}

func TestInstrumenter_Instrument_RegistryPanicSwallowed(t *testing.T) {
	reg := RegistryFunc(func(string, LabelSet, time.Duration) {
		panic("storage unavailable")
	})
	inst, _ := newTestInstrumenter(t, 10, reg)

	resp, err := inst.Instrument(context.Background(), RequestDescriptor{Method: "GET", RouteTemplate: "/"}, respond(http.StatusOK))
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("Instrument() = (%v, %v)", resp, err)
	}
	if inst.RecordFailures() != 1 {
		t.Errorf("RecordFailures() = %d, want 1", inst.RecordFailures())
	}
}

func TestInstrumenter_Instrument_ExtractorPanicDegrades(t *testing.T) {
	reg := &recordingRegistry{}
	extractor := TagExtractorFunc(func(RequestDescriptor, CallOutcome) LabelSet {
		panic("bad extractor")
	})
	inst, _ := newTestInstrumenter(t, 10, reg, WithTagExtractor(extractor))

	if _, err := inst.Instrument(context.Background(), RequestDescriptor{Method: "GET"}, respond(http.StatusOK)); err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	samples := reg.all()
	if len(samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(samples))
	}
	for _, l := range samples[0].labels.Labels() {
		if l.Value != Unknown {
			t.Errorf("label %s = %q, want %q", l.Key, l.Value, Unknown)
		}
	}
}

func TestInstrumenter_Instrument_CustomExtractor(t *testing.T) {
	reg := &recordingRegistry{}
	extractor := TagExtractorFunc(func(req RequestDescriptor, outcome CallOutcome) LabelSet {
		return NewLabelSet(
			Label{Key: LabelURI, Value: req.RouteTemplate},
			Label{Key: "kind", Value: outcome.Kind().String()},
		)
	})
	inst, _ := newTestInstrumenter(t, 10, reg, WithTagExtractor(extractor))

	_, _ = inst.Instrument(context.Background(), RequestDescriptor{RouteTemplate: "/x"}, respond(http.StatusOK))

	samples := reg.all()
	if len(samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(samples))
	}
	if kind, _ := samples[0].labels.Get("kind"); kind != "success" {
		t.Errorf("kind = %q, want success", kind)
	}
}

func TestInstrumenter_Instrument_Concurrent(t *testing.T) {
	const maxAllowed = 20
	reg := &recordingRegistry{}
	inst, logger := newTestInstrumenter(t, maxAllowed, reg)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := RequestDescriptor{Method: "GET", Host: "h", RouteTemplate: fmt.Sprintf("/items/%d", i%40)}
			_, _ = inst.Instrument(context.Background(), req, respond(http.StatusOK))
		}(i)
	}
	wg.Wait()

	distinct := make(map[string]bool)
	for _, s := range reg.all() {
		uri, _ := s.labels.Get(LabelURI)
		distinct[uri] = true
	}
	if len(distinct) != maxAllowed {
		t.Errorf("distinct recorded uris = %d, want %d", len(distinct), maxAllowed)
	}
	if int64(len(reg.all()))+inst.Denied() != 200 {
		t.Errorf("recorded %d + denied %d != 200 calls", len(reg.all()), inst.Denied())
	}
	if n := logger.warnings.Load(); n != 1 {
		t.Errorf("warnings = %d, want 1", n)
	}
}

func TestInstrumenter_Instrument_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	inst, _ := newTestInstrumenter(t, 10, Discard, WithTracer(provider.Tracer("test")))

	_, _ = inst.Instrument(context.Background(), RequestDescriptor{Method: "GET", Host: "h", RouteTemplate: "/ok"}, respond(http.StatusOK))
	_, _ = inst.Instrument(context.Background(), RequestDescriptor{Method: "GET", Host: "h", RouteTemplate: "/fail"}, func(ctx context.Context) (*http.Response, error) {
		return nil, errors.New("refused")
	})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "HTTP GET" {
		t.Errorf("span name = %q, want HTTP GET", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("first span status = %v, want Ok", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("second span status = %v, want Error", spans[1].Status().Code)
	}
}

func TestNewInstrumenter_Validation(t *testing.T) {
	guard, _ := NewGuard("uri", 1, nil)

	if _, err := NewInstrumenter("", guard, nil); err == nil {
		t.Error("expected error for empty metric name")
	}
	if _, err := NewInstrumenter("m", nil, nil); err == nil {
		t.Error("expected error for nil guard")
	}
	if _, err := New(Options{MaxAllowed: 0}); !errors.Is(err, ErrInvalidMaxAllowed) {
		t.Errorf("New() error = %v, want ErrInvalidMaxAllowed", err)
	}

	inst, err := New(Options{MaxAllowed: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if inst.MetricName() != DefaultMetricName || inst.Guard().LabelKey() != DefaultGuardedLabelKey || inst.Guard().MaxAllowed() != 3 {
		t.Errorf("New() defaults not applied: %s %s %d", inst.MetricName(), inst.Guard().LabelKey(), inst.Guard().MaxAllowed())
	}
}

func TestNew_UnknownGuardedKey(t *testing.T) {
	if _, err := New(Options{GuardedLabelKey: "target", MaxAllowed: 2}); !errors.Is(err, ErrUnknownGuardedKey) {
		t.Fatalf("New() error = %v, want ErrUnknownGuardedKey", err)
	}

	custom := TagExtractorFunc(func(req RequestDescriptor, _ CallOutcome) LabelSet {
		return NewLabelSet(Label{Key: "target", Value: req.RouteTemplate})
	})
	inst, err := New(Options{GuardedLabelKey: "target", MaxAllowed: 2}, WithTagExtractor(custom))
	if err != nil {
		t.Fatalf("New() with custom extractor error = %v", err)
	}

	for i := 0; i < 50; i++ {
		req := RequestDescriptor{Method: "GET", Host: "api", RouteTemplate: fmt.Sprintf("/items/%d", i)}
		if _, err := inst.Instrument(context.Background(), req, respond(http.StatusOK)); err != nil {
			t.Fatal(err)
		}
	}
	if got := inst.Guard().Tracked(DefaultMetricName); len(got) != 2 {
		t.Errorf("Tracked() = %v, want 2 values", got)
	}
	if got := inst.Denied(); got != 48 {
		t.Errorf("Denied() = %d, want 48", got)
	}
}

func TestMultiRegistry_RecordTiming(t *testing.T) {
	first := &recordingRegistry{}
	second := &recordingRegistry{}
	failing := RegistryFunc(func(string, LabelSet, time.Duration) { panic("down") })

	MultiRegistry{first, failing, second}.RecordTiming("m", NewLabelSet(), time.Millisecond)

	if len(first.all()) != 1 || len(second.all()) != 1 {
		t.Errorf("fan-out delivered %d and %d samples, want 1 each", len(first.all()), len(second.all()))
	}
}
