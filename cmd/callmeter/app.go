package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"mercator-hq/callmeter/pkg/cli"
	"mercator-hq/callmeter/pkg/clientmetrics"
	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/probe"
	"mercator-hq/callmeter/pkg/telemetry"
)

// app wires the instrumented client, probes and telemetry for one
// configuration. run and probe share it.
type app struct {
	telemetry *telemetry.Telemetry
	inst      *clientmetrics.Instrumenter
	client    *http.Client
	prober    *probe.Prober
	scheduler *probe.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config, opts ...telemetry.Option) (*app, error) {
	tel, err := telemetry.New(ctx, &cfg.Telemetry, versionInfo(), opts...)
	if err != nil {
		return nil, cli.NewCommandError("telemetry", err)
	}
	logger := tel.Logger()

	registry := tel.Metrics().Backend()
	if !cfg.ClientMetrics.Enabled {
		registry = clientmetrics.Discard
	}

	inst, err := clientmetrics.New(clientmetrics.Options{
		MetricName:      cfg.ClientMetrics.MetricName,
		GuardedLabelKey: cfg.ClientMetrics.GuardedLabelKey,
		MaxAllowed:      cfg.ClientMetrics.MaxAllowed,
		Registry:        registry,
		Logger:          logger,
	}, clientmetrics.WithTracer(tel.Tracer().Tracer()))
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, cli.NewConfigError("client_metrics", err.Error())
	}

	if err := tel.Metrics().ObserveGuard(inst.Guard()); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, cli.NewCommandError("telemetry", err)
	}

	client := clientmetrics.InstrumentClient(&http.Client{}, inst)
	prober := probe.NewProber(client, cfg.Probes.Targets, cfg.Probes.Timeout,
		probe.WithLogger(logger),
		probe.WithRecorder(tel.Metrics()),
	)

	tel.Health().RegisterCheck("probes", prober.Check)

	return &app{
		telemetry: tel,
		inst:      inst,
		client:    client,
		prober:    prober,
		scheduler: probe.NewScheduler(prober, cfg.Probes.Schedule, logger),
	}, nil
}

// mount registers the telemetry endpoints plus the guard and probe status
// endpoints on mux.
func (a *app) mount(mux *http.ServeMux) {
	a.telemetry.Mount(mux)
	mux.HandleFunc("/status/guard", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, a.inst.Guard().Snapshot())
	})
	mux.HandleFunc("/status/probes", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, probeRows(a.prober.LastResults()))
	})
}

func (a *app) close(ctx context.Context) error {
	a.scheduler.Stop()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down telemetry: %w", err)
	}
	return nil
}

func writeStatus(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
