package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/callmeter/pkg/config"
)

// TestNew tests the creation of a new health checker.
func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "default timeout", timeout: 0, expectedTimeout: 5 * time.Second},
		{name: "negative timeout", timeout: -time.Second, expectedTimeout: 5 * time.Second},
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected no checks, got %v", checker.ListChecks())
			}
		})
	}
}

func TestChecker_RegisterCheck(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("probes", func(context.Context) error { return nil })
	checker.RegisterCheck("config", func(context.Context) error { return nil })
	checker.RegisterCheck("config", func(context.Context) error { return errors.New("replaced") })

	names := checker.ListChecks()
	if len(names) != 2 || names[0] != "config" || names[1] != "probes" {
		t.Errorf("ListChecks() = %v, want [config probes]", names)
	}

	status := checker.CheckReadiness(context.Background())
	if status.Checks["config"].Message != "replaced" {
		t.Errorf("replaced check not used: %+v", status.Checks["config"])
	}

	checker.UnregisterCheck("config")
	if len(checker.ListChecks()) != 1 {
		t.Errorf("UnregisterCheck() left %v", checker.ListChecks())
	}
}

func TestChecker_CheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"config": func(context.Context) error { return nil },
				"probes": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one unhealthy",
			checks: map[string]CheckFunc{
				"config": func(context.Context) error { return nil },
				"probes": func(context.Context) error { return errors.New("users: connection refused") },
			},
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("results = %d, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestChecker_CheckTimeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v, want timeout", result)
	}
	if status.Ready() {
		t.Error("timed out check should not be ready")
	}
}

func TestConfigCheck(t *testing.T) {
	valid := config.NewDefaultConfig()
	invalid := config.NewDefaultConfig()
	invalid.ClientMetrics.MaxAllowed = 0

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr bool
	}{
		{name: "valid", cfg: valid},
		{name: "not loaded", cfg: nil, wantErr: true},
		{name: "invalid", cfg: invalid, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ConfigCheck(func() *config.Config { return tt.cfg })
			if err := check(context.Background()); (err != nil) != tt.wantErr {
				t.Errorf("ConfigCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		failing    bool
		wantCode   int
		wantStatus string
	}{
		{name: "ready", method: http.MethodGet, wantCode: http.StatusOK, wantStatus: StatusReady},
		{name: "degraded", method: http.MethodGet, failing: true, wantCode: http.StatusServiceUnavailable, wantStatus: StatusDegraded},
		{name: "head", method: http.MethodHead, wantCode: http.StatusOK},
		{name: "post rejected", method: http.MethodPost, wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			checker.RegisterCheck("probes", func(context.Context) error {
				if tt.failing {
					return errors.New("last run failed")
				}
				return nil
			})

			rec := httptest.NewRecorder()
			checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantStatus == "" {
				if tt.method == http.MethodHead && rec.Body.Len() != 0 {
					t.Error("HEAD response has a body")
				}
				return
			}

			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status.Status, tt.wantStatus)
			}
		})
	}
}

func TestMount(t *testing.T) {
	mux := http.NewServeMux()
	cfg := &config.HealthConfig{Enabled: true, LivenessPath: "/livez", ReadinessPath: "/readyz"}
	Mount(mux, New(time.Second), cfg, NewVersionInfo("1.0.0", "abc123", "2026-10-16"))

	for path, want := range map[string]int{
		"/livez":   http.StatusOK,
		"/readyz":  http.StatusOK,
		"/version": http.StatusOK,
		"/health":  http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.0.0" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}
}
