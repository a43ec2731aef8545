package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/callmeter/pkg/cli"
	"mercator-hq/callmeter/pkg/config"
)

var validateFlags struct {
	print bool
	noEnv bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting anything.

Every invalid field is reported, not only the first. With --print the
effective configuration, defaults and environment overrides included, is
written as YAML.

Examples:
  # Validate the default config file
  callmeter validate

  # Show the effective configuration
  callmeter validate --config /etc/callmeter/callmeter.yaml --print

  # Ignore CALLMETER_* environment overrides
  callmeter validate --no-env`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.print, "print", false, "print the effective configuration as YAML")
	validateCmd.Flags().BoolVar(&validateFlags.noEnv, "no-env", false, "ignore environment variable overrides")
}

func runValidate(cmd *cobra.Command, args []string) error {
	load := config.LoadConfigWithEnvOverrides
	if validateFlags.noEnv {
		load = config.LoadConfig
	}

	cfg, err := load(cfgFile)
	if err != nil {
		return fmt.Errorf("%s: %w", cfgFile, err)
	}

	out := cmd.OutOrStdout()
	if validateFlags.print {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return cli.NewCommandError("validate", err)
		}
		return enc.Close()
	}

	fmt.Fprintf(out, "✓ %s is valid\n", cfgFile)
	if verbose {
		fmt.Fprintf(out, "  client metrics: %s (guard %s <= %d)\n",
			cfg.ClientMetrics.MetricName, cfg.ClientMetrics.GuardedLabelKey, cfg.ClientMetrics.MaxAllowed)
		fmt.Fprintf(out, "  probes: %d targets, schedule %q\n", len(cfg.Probes.Targets), cfg.Probes.Schedule)
		fmt.Fprintf(out, "  metrics backend: %s\n", cfg.Telemetry.Metrics.Backend)
	}
	return nil
}
