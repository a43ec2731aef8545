package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/callmeter/pkg/clientmetrics"
	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/telemetry/metrics"
)

type recordedRun struct {
	target string
	err    error
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (f *fakeRecorder) RecordProbe(target string, err error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, recordedRun{target: target, err: err})
}

func newTestServer(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	seen := &sync.Map{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.Path, r.Header.Clone())
		switch {
		case strings.HasPrefix(r.URL.Path, "/users/"):
			_, _ = w.Write([]byte(`{"id":1}`))
		case r.URL.Path == "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newInstrumentedClient(t *testing.T) (*http.Client, *metrics.MemoryRegistry) {
	t.Helper()
	mem := metrics.NewMemoryRegistry()
	inst, err := clientmetrics.New(clientmetrics.Options{MaxAllowed: 10, Registry: mem})
	if err != nil {
		t.Fatal(err)
	}
	return clientmetrics.InstrumentClient(&http.Client{}, inst), mem
}

func TestProber_RunOnce(t *testing.T) {
	srv, seen := newTestServer(t)
	client, mem := newInstrumentedClient(t)
	recorder := &fakeRecorder{}

	targets := []config.ProbeTarget{
		{Name: "users", Method: "GET", URL: srv.URL + "/users/42", Route: "/users/{id}", Headers: map[string]string{"Accept": "application/json"}},
		{Name: "broken", Method: "get", URL: srv.URL + "/broken"},
		{Name: "missing", Method: "GET", URL: srv.URL + "/missing"},
	}
	p := NewProber(client, targets, time.Second, WithRecorder(recorder))

	results := p.RunOnce(context.Background())
	if len(results) != 3 {
		t.Fatalf("RunOnce() returned %d results, want 3", len(results))
	}

	tests := []struct {
		target     string
		wantStatus int
		wantFailed bool
	}{
		{"users", http.StatusOK, false},
		{"broken", http.StatusBadGateway, true},
		{"missing", http.StatusNotFound, false},
	}
	for i, tt := range tests {
		r := results[i]
		if r.Target != tt.target {
			t.Errorf("results[%d].Target = %s, want %s", i, r.Target, tt.target)
		}
		if r.StatusCode != tt.wantStatus || r.Failed() != tt.wantFailed {
			t.Errorf("%s: status %d failed %v, want %d %v", r.Target, r.StatusCode, r.Failed(), tt.wantStatus, tt.wantFailed)
		}
		if r.RequestID == "" || r.Duration < 0 {
			t.Errorf("%s: request id %q duration %v", r.Target, r.RequestID, r.Duration)
		}
	}
	if !errors.Is(results[1].Err, ErrServerStatus) {
		t.Errorf("broken target error = %v, want ErrServerStatus", results[1].Err)
	}

	h, ok := seen.Load("/users/42")
	if !ok {
		t.Fatal("users target was not called")
	}
	headers := h.(http.Header)
	if headers.Get(RequestIDHeader) != results[0].RequestID {
		t.Errorf("%s = %q, want %q", RequestIDHeader, headers.Get(RequestIDHeader), results[0].RequestID)
	}
	if headers.Get("Accept") != "application/json" {
		t.Error("target headers not sent")
	}

	var uris []string
	for _, s := range mem.Query(clientmetrics.DefaultMetricName) {
		uri, _ := s.Labels.Get(clientmetrics.LabelURI)
		uris = append(uris, uri)
	}
	want := []string{"/broken", "/missing", "/users/{id}"}
	if strings.Join(uris, ",") != strings.Join(want, ",") {
		t.Errorf("recorded uris = %v, want %v", uris, want)
	}

	if len(recorder.runs) != 3 {
		t.Errorf("recorder saw %d runs, want 3", len(recorder.runs))
	}
}

func TestProber_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, mem := newInstrumentedClient(t)
	p := NewProber(client, []config.ProbeTarget{{Name: "down", Method: "GET", URL: url + "/x", Route: "/x"}}, time.Second)

	results := p.RunOnce(context.Background())
	if !results[0].Failed() || results[0].StatusCode != 0 {
		t.Errorf("result = %+v, want transport failure", results[0])
	}

	series := mem.Query(clientmetrics.DefaultMetricName)
	if len(series) != 1 {
		t.Fatalf("series = %d, want 1", len(series))
	}
	if status, _ := series[0].Labels.Get(clientmetrics.LabelStatus); status != clientmetrics.StatusClientError {
		t.Errorf("status label = %s, want %s", status, clientmetrics.StatusClientError)
	}
}

func TestProber_Check(t *testing.T) {
	srv, _ := newTestServer(t)
	client, _ := newInstrumentedClient(t)

	p := NewProber(client, []config.ProbeTarget{
		{Name: "users", Method: "GET", URL: srv.URL + "/users/1"},
	}, time.Second)

	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() before any run = %v, want nil", err)
	}

	p.RunOnce(context.Background())
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() after healthy run = %v", err)
	}

	p.SetTargets([]config.ProbeTarget{
		{Name: "broken", Method: "GET", URL: srv.URL + "/broken"},
	})
	if len(p.LastResults()) != 0 {
		t.Error("SetTargets() kept results of removed targets")
	}

	p.RunOnce(context.Background())
	err := p.Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Check() = %v, want failure naming broken", err)
	}
}

func TestProber_InvalidURL(t *testing.T) {
	p := NewProber(nil, nil, 0)
	r := p.Probe(context.Background(), config.ProbeTarget{Name: "bad", Method: "GET", URL: "://nope"})
	if !r.Failed() {
		t.Error("invalid URL should fail")
	}
	if p.timeout != config.DefaultProbeTimeout {
		t.Errorf("timeout = %v, want default", p.timeout)
	}
}

func TestProber_SetTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewProber(srv.Client(), nil, time.Minute)
	p.SetTimeout(20 * time.Millisecond)
	p.SetTimeout(0)

	start := time.Now()
	res := p.Probe(context.Background(), config.ProbeTarget{Name: "slow", Method: http.MethodGet, URL: srv.URL})
	if !res.Failed() {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("probe took %v, timeout not applied", elapsed)
	}
}
