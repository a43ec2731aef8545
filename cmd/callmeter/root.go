package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/callmeter/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callmeter",
	Short: "Callmeter - outbound HTTP call metrics with a cardinality guard",
	Long: `Callmeter times outbound HTTP calls and records them as labeled metrics.

Every sample carries the method, URI template, client name, status, outcome
and exception labels. The number of distinct URI values is capped so a
client that leaks raw paths into its labels cannot exhaust the metrics
backend.

Samples go to Prometheus, an OTLP collector, or an in-memory registry.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code that tells
// configuration errors from runtime failures.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "callmeter.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
