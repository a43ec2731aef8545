package main

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"mercator-hq/callmeter/pkg/cli"
	"mercator-hq/callmeter/pkg/config"
)

func runValidateCommand(t *testing.T, path string, printConfig bool) (string, error) {
	t.Helper()

	origCfg, origFlags := cfgFile, validateFlags
	t.Cleanup(func() { cfgFile, validateFlags = origCfg, origFlags })

	cfgFile = path
	validateFlags.print = printConfig
	validateFlags.noEnv = true

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	t.Cleanup(func() { validateCmd.SetOut(nil) })

	err := runValidate(validateCmd, nil)
	return out.String(), err
}

func TestRunValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		wantCode int
	}{
		{name: "empty file uses defaults", config: "", wantCode: cli.ExitOK},
		{name: "valid targets", config: probeConfig("https://api.example.com"), wantCode: cli.ExitOK},
		{name: "unknown backend", config: "telemetry:\n  metrics:\n    backend: statsd\n", wantCode: cli.ExitConfigError},
		{name: "bad schedule", config: "probes:\n  schedule: every minute\n", wantCode: cli.ExitConfigError},
		{name: "relative url", config: "probes:\n  targets:\n    - name: a\n      url: /users\n", wantCode: cli.ExitConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runValidateCommand(t, writeConfig(t, tt.config), false)
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Fatalf("ExitCode() = %d, want %d (err = %v)", got, tt.wantCode, err)
			}
			if err == nil && !strings.Contains(out, "is valid") {
				t.Errorf("output = %q", out)
			}
		})
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := runValidateCommand(t, "/nonexistent/callmeter.yaml", false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunValidate_Print(t *testing.T) {
	out, err := runValidateCommand(t, writeConfig(t, "client_metrics:\n  max_allowed: 25\n"), true)
	if err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}

	cfg, err := config.Parse([]byte(out))
	if err != nil {
		t.Fatalf("printed config does not parse: %v\n%s", err, out)
	}
	if cfg.ClientMetrics.MaxAllowed != 25 {
		t.Errorf("MaxAllowed = %d, want 25", cfg.ClientMetrics.MaxAllowed)
	}
	if cfg.Probes.Timeout != config.DefaultProbeTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.Probes.Timeout, config.DefaultProbeTimeout)
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(out), &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"client_metrics", "probes", "server", "telemetry"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("printed config missing %q", key)
		}
	}
}
