package clientmetrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDescriptorFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		method   string
		url      string
		wantHost string
		wantURI  string
	}{
		{
			name:     "template from context",
			ctx:      WithRouteTemplate(context.Background(), "/users/{id}"),
			method:   http.MethodGet,
			url:      "https://api.example.com/users/42?expand=true",
			wantHost: "api.example.com",
			wantURI:  "/users/{id}",
		},
		{
			name:     "path fallback strips query",
			ctx:      context.Background(),
			method:   http.MethodDelete,
			url:      "http://localhost:8080/users/42?x=1",
			wantHost: "localhost:8080",
			wantURI:  "/users/42",
		},
		{
			name:     "empty path",
			ctx:      context.Background(),
			method:   http.MethodGet,
			url:      "http://example.com",
			wantHost: "example.com",
			wantURI:  "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(tt.ctx, tt.method, tt.url, nil)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			desc := DescriptorFromRequest(req)
			if desc.Method != tt.method || desc.Host != tt.wantHost || desc.RouteTemplate != tt.wantURI {
				t.Errorf("DescriptorFromRequest() = %+v", desc)
			}
		})
	}
}

func TestRouteTemplate_Missing(t *testing.T) {
	if got := RouteTemplate(context.Background()); got != "" {
		t.Errorf("RouteTemplate() = %q, want empty", got)
	}
}

func TestTransport_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := &recordingRegistry{}
	inst, _ := newTestInstrumenter(t, 10, reg)
	client := InstrumentClient(srv.Client(), inst)

	ctx := WithRouteTemplate(context.Background(), "/users/{id}")
	for _, path := range []string{"/users/1", "/users/2", "/missing/3"} {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do(%s) error = %v", path, err)
		}
		resp.Body.Close()
	}

	samples := reg.all()
	if len(samples) != 3 {
		t.Fatalf("recorded %d samples, want 3", len(samples))
	}
	wantStatus := []string{"200", "200", "404"}
	serverURL, _ := url.Parse(srv.URL)
	for i, s := range samples {
		if uri, _ := s.labels.Get(LabelURI); uri != "/users/{id}" {
			t.Errorf("sample %d uri = %q", i, uri)
		}
		if host, _ := s.labels.Get(LabelClientName); host != serverURL.Host {
			t.Errorf("sample %d client_name = %q, want %q", i, host, serverURL.Host)
		}
		if status, _ := s.labels.Get(LabelStatus); status != wantStatus[i] {
			t.Errorf("sample %d status = %q, want %q", i, status, wantStatus[i])
		}
	}
}

func TestTransport_RoundTrip_TransportError(t *testing.T) {
	reg := &recordingRegistry{}
	inst, _ := newTestInstrumenter(t, 10, reg)

	wantErr := errors.New("dial failed")
	tr := &Transport{
		Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, wantErr
		}),
		Instrumenter: inst,
	}

	req, _ := http.NewRequest(http.MethodPost, "http://unreachable.invalid/orders", nil)
	resp, err := tr.RoundTrip(req)
	if resp != nil || err != wantErr {
		t.Fatalf("RoundTrip() = (%v, %v), want (nil, %v)", resp, err, wantErr)
	}

	samples := reg.all()
	if len(samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(samples))
	}
	if status, _ := samples[0].labels.Get(LabelStatus); status != StatusClientError {
		t.Errorf("status = %q, want %q", status, StatusClientError)
	}
	if uri, _ := samples[0].labels.Get(LabelURI); uri != "/orders" {
		t.Errorf("uri = %q, want /orders", uri)
	}
}

func TestTransport_RoundTrip_InjectsTraceContext(t *testing.T) {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	inst, _ := newTestInstrumenter(t, 10, Discard, WithTracer(provider.Tracer("test")))

	var gotHeader string
	tr := &Transport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotHeader = r.Header.Get("traceparent")
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
		Instrumenter: inst,
		Propagator:   propagation.TraceContext{},
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	if gotHeader == "" {
		t.Error("traceparent header was not injected")
	}
	if req.Header.Get("traceparent") != "" {
		t.Error("caller's request was mutated")
	}
}

func TestTransport_RoundTrip_NoInstrumenter(t *testing.T) {
	called := false
	tr := &Transport{Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusOK}, nil
	})}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if _, err := tr.RoundTrip(req); err != nil || !called {
		t.Errorf("RoundTrip() err = %v, called = %v", err, called)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
