package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"mercator-hq/callmeter/pkg/clientmetrics"
	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/telemetry/logging"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-probe request id to the target.
const RequestIDHeader = "X-Request-ID"

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

// ErrServerStatus marks a probe that got a 5xx response.
var ErrServerStatus = errors.New("server error status")

// Result is the outcome of one probe of one target.
type Result struct {
	Target     string        `json:"target"`
	Method     string        `json:"method"`
	Route      string        `json:"route,omitempty"`
	RequestID  string        `json:"request_id"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Time       time.Time     `json:"time"`
	Err        error         `json:"-"`
}

// Failed reports whether the target is considered down: the call failed or
// the target answered with a 5xx status.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Error returns the failure message, or "" for a successful probe.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Recorder receives one call per probe run. *metrics.Collector satisfies it.
type Recorder interface {
	RecordProbe(target string, err error, duration time.Duration)
}

// Prober sends synthetic requests to the configured targets through an
// instrumented client.
type Prober struct {
	client   *http.Client
	logger   *logging.Logger
	recorder Recorder

	mu      sync.RWMutex
	timeout time.Duration
	targets []config.ProbeTarget
	last    map[string]Result
}

// Option configures a Prober.
type Option func(*Prober)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// WithRecorder reports every run to r.
func WithRecorder(r Recorder) Option {
	return func(p *Prober) {
		p.recorder = r
	}
}

// NewProber creates a prober that sends requests with client. client should
// be wrapped by clientmetrics.InstrumentClient so every probe is timed.
func NewProber(client *http.Client, targets []config.ProbeTarget, timeout time.Duration, opts ...Option) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = config.DefaultProbeTimeout
	}

	p := &Prober{
		client:  client,
		timeout: timeout,
		logger:  logging.Nop(),
		targets: slices.Clone(targets),
		last:    make(map[string]Result),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Targets returns a copy of the current targets.
func (p *Prober) Targets() []config.ProbeTarget {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.targets)
}

// SetTargets replaces the targets probed by later runs. Last results of
// targets that were removed are forgotten.
func (p *Prober) SetTargets(targets []config.ProbeTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.targets = slices.Clone(targets)

	keep := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		keep[t.Name] = struct{}{}
	}
	for name := range p.last {
		if _, ok := keep[name]; !ok {
			delete(p.last, name)
		}
	}
}

// SetTimeout changes the per-request timeout of later probes. A zero or
// negative timeout is ignored.
func (p *Prober) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	p.mu.Lock()
	p.timeout = timeout
	p.mu.Unlock()
}

// RunOnce probes every target concurrently and returns the results in
// target order.
func (p *Prober) RunOnce(ctx context.Context) []Result {
	targets := p.Targets()
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Probe(ctx, target)
		}()
	}
	wg.Wait()

	return results
}

// Probe sends one request to target and records the result.
func (p *Prober) Probe(ctx context.Context, target config.ProbeTarget) Result {
	requestID := uuid.NewString()

	p.mu.RLock()
	timeout := p.timeout
	p.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx = logging.WithRequestID(ctx, requestID)
	ctx = logging.WithTarget(ctx, target.Name)
	if target.Route != "" {
		ctx = clientmetrics.WithRouteTemplate(ctx, target.Route)
	}

	result := Result{
		Target:    target.Name,
		Method:    target.Method,
		Route:     target.Route,
		RequestID: requestID,
		Time:      time.Now(),
	}

	result.StatusCode, result.Err = p.do(ctx, target, requestID)
	result.Duration = time.Since(result.Time)

	if result.Failed() {
		p.logger.WarnContext(ctx, "probe failed",
			"url", target.URL,
			"status_code", result.StatusCode,
			"duration_ms", result.Duration.Milliseconds(),
			"error", result.Err,
		)
	} else {
		p.logger.DebugContext(ctx, "probe succeeded",
			"url", target.URL,
			"status_code", result.StatusCode,
			"duration_ms", result.Duration.Milliseconds(),
		)
	}

	if p.recorder != nil {
		p.recorder.RecordProbe(target.Name, result.Err, result.Duration)
	}

	p.mu.Lock()
	p.last[target.Name] = result
	p.mu.Unlock()

	return result
}

func (p *Prober) do(ctx context.Context, target config.ProbeTarget, requestID string) (int, error) {
	method := strings.ToUpper(target.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("%w: %s", ErrServerStatus, resp.Status)
	}
	return resp.StatusCode, nil
}

// LastResults returns the most recent result of every target, in target
// order. Targets not yet probed are omitted.
func (p *Prober) LastResults() []Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Result, 0, len(p.last))
	for _, t := range p.targets {
		if r, ok := p.last[t.Name]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Check fails when the last run of any target failed. It is a
// health.CheckFunc.
func (p *Prober) Check(context.Context) error {
	var failed []string
	for _, r := range p.LastResults() {
		if r.Failed() {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Target, r.Error()))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("last run failed: %s", strings.Join(failed, "; "))
	}
	return nil
}
