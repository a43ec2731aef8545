package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callmeter/pkg/cli"
	"mercator-hq/callmeter/pkg/clientmetrics"
	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/probe"
	"mercator-hq/callmeter/pkg/telemetry"
	"mercator-hq/callmeter/pkg/telemetry/metrics"
)

var probeFlags struct {
	output  string
	targets []string
	timeout time.Duration
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe every target once and print the recorded timings",
	Long: `Run one round of synthetic probes through the instrumented client.

Samples are recorded to an in-memory registry regardless of the configured
metrics backend, then printed alongside the per-target results. The command
exits non-zero when any target failed.

Examples:
  # Probe all configured targets
  callmeter probe

  # Probe a single target with a shorter timeout
  callmeter probe --target users --timeout 2s

  # Machine-readable output
  callmeter probe --output json`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVarP(&probeFlags.output, "output", "o", "text", "output format: text, json, csv")
	probeCmd.Flags().StringSliceVarP(&probeFlags.targets, "target", "t", nil, "probe only the named targets")
	probeCmd.Flags().DurationVar(&probeFlags.timeout, "timeout", 0, "override the per-request timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(probeFlags.output)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	probeCfg := *cfg
	probeCfg.Telemetry.Metrics.Enabled = true
	probeCfg.Telemetry.Metrics.Backend = config.BackendMemory
	probeCfg.Telemetry.Logging.Level = "warn"
	if verbose {
		probeCfg.Telemetry.Logging.Level = "debug"
	}
	if probeFlags.timeout > 0 {
		probeCfg.Probes.Timeout = probeFlags.timeout
	}

	targets, err := selectTargets(cfg.Probes.Targets, probeFlags.targets)
	if err != nil {
		return err
	}
	probeCfg.Probes.Targets = targets

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := newApp(ctx, &probeCfg, telemetry.WithLogWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	results := a.prober.RunOnce(ctx)
	series := a.telemetry.Metrics().Memory().Query(metricName(&probeCfg))

	if err := writeProbeReport(cmd.OutOrStdout(), format, results, series); err != nil {
		return cli.NewCommandError("probe", err)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return cli.NewCommandError("probe", fmt.Errorf("%d of %d targets failed", failed, len(results)))
	}
	return nil
}

// selectTargets returns the targets named in names, in configuration order.
// No names selects every target.
func selectTargets(targets []config.ProbeTarget, names []string) ([]config.ProbeTarget, error) {
	if len(targets) == 0 {
		return nil, cli.NewConfigError("probes.targets", "no probe targets configured")
	}
	if len(names) == 0 {
		return targets, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var selected []config.ProbeTarget
	for _, t := range targets {
		if want[t.Name] {
			selected = append(selected, t)
			delete(want, t.Name)
		}
	}
	for _, n := range names {
		if want[n] {
			return nil, cli.NewConfigError("target", fmt.Sprintf("unknown probe target %q", n))
		}
	}
	return selected, nil
}

func metricName(cfg *config.Config) string {
	if cfg.ClientMetrics.MetricName == "" {
		return clientmetrics.DefaultMetricName
	}
	return cfg.ClientMetrics.MetricName
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// probeReport is the JSON shape of the probe command output.
type probeReport struct {
	Results probeTable       `json:"results"`
	Series  []metrics.Series `json:"series"`
}

func writeProbeReport(w io.Writer, format cli.OutputFormat, results []probe.Result, series []metrics.Series) error {
	formatter := cli.NewFormatter(format)
	if format == cli.FormatJSON {
		if series == nil {
			series = []metrics.Series{}
		}
		return formatter.FormatTo(w, probeReport{Results: probeRows(results), Series: series})
	}

	if err := formatter.FormatTo(w, probeRows(results)); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return formatter.FormatTo(w, seriesTable(series))
}

type probeRow struct {
	Target     string  `json:"target"`
	Method     string  `json:"method"`
	Route      string  `json:"route,omitempty"`
	RequestID  string  `json:"request_id"`
	Status     int     `json:"status,omitempty"`
	DurationMS float64 `json:"duration_ms"`
	Time       string  `json:"time,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type probeTable []probeRow

func probeRows(results []probe.Result) probeTable {
	rows := make(probeTable, 0, len(results))
	for _, r := range results {
		row := probeRow{
			Target:     r.Target,
			Method:     r.Method,
			Route:      r.Route,
			RequestID:  r.RequestID,
			Status:     r.StatusCode,
			DurationMS: float64(r.Duration.Microseconds()) / 1000,
			Error:      r.Error(),
		}
		if !r.Time.IsZero() {
			row.Time = r.Time.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows
}

func (t probeTable) Header() []string {
	return []string{"target", "method", "status", "duration_ms", "result"}
}

func (t probeTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		status := "-"
		if r.Status != 0 {
			status = strconv.Itoa(r.Status)
		}
		result := "ok"
		if r.Error != "" {
			result = r.Error
		}
		rows = append(rows, []string{
			r.Target,
			r.Method,
			status,
			strconv.FormatFloat(r.DurationMS, 'f', 1, 64),
			result,
		})
	}
	return rows
}

type seriesTable []metrics.Series

func (t seriesTable) Header() []string {
	return []string{"metric", "labels", "count", "mean_ms", "max_ms"}
}

func (t seriesTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{
			s.Metric,
			s.Labels.String(),
			strconv.FormatInt(s.Count, 10),
			formatMillis(s.Mean()),
			formatMillis(s.Max),
		})
	}
	return rows
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 1, 64)
}
