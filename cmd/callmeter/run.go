package main

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/spf13/cobra"

	"mercator-hq/callmeter/pkg/cli"
	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/server"
	"mercator-hq/callmeter/pkg/telemetry/health"
	"mercator-hq/callmeter/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the probe scheduler and operator server",
	Long: `Start callmeter with the specified configuration.

Configured targets are probed on the cron schedule through the instrumented
client. The operator server exposes metrics, health, guard state and the
latest probe results. The configuration file is watched; log level and probe
targets are applied live, and SIGHUP forces a reload.

Examples:
  # Start with default config
  callmeter run

  # Start with custom config
  callmeter run --config /etc/callmeter/callmeter.yaml

  # Override listen address
  callmeter run --listen 0.0.0.0:9464

  # Validate config without starting
  callmeter run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := withRunOverrides(config.GetConfig())
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flag overrides: %w", err)
	}
	config.SetConfig(cfg)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	logger := a.telemetry.Logger()
	slog.SetDefault(logger.Slog())

	a.telemetry.Health().RegisterCheck("config", health.ConfigCheck(config.GetConfig))

	srv := server.New(&cfg.Server, logger)
	a.mount(srv.Mux())
	if err := srv.Listen(); err != nil {
		return cli.NewCommandError("run", err)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		_ = srv.Shutdown(context.Background())
		return cli.NewCommandError("run", err)
	}

	reload := func() error { return applyReload(a, logger) }
	watchReloads(ctx, logger, reload)

	fmt.Fprintf(out, "✓ Listening on %s\n", srv.Addr())
	fmt.Fprintf(out, "✓ Probing %d targets (%s)\n", len(cfg.Probes.Targets), cfg.Probes.Schedule)
	fmt.Fprintf(out, "✓ Metrics backend: %s\n", cfg.Telemetry.Metrics.Backend)

	if err := srv.Serve(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// withRunOverrides returns a copy of cfg with the run flags applied. The
// loaded configuration is shared and must not be mutated.
func withRunOverrides(cfg *config.Config) *config.Config {
	c := *cfg
	if runFlags.listenAddress != "" {
		c.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		c.Telemetry.Logging.Level = runFlags.logLevel
	}
	return &c
}

// watchReloads calls reload on configuration file changes and on SIGHUP
// until ctx is done.
func watchReloads(ctx context.Context, logger *logging.Logger, reload func() error) {
	watcher, err := config.NewFileWatcher(cfgFile, 0, logger.Slog())
	if err != nil {
		logger.Warn("configuration file watching disabled", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				logger.Warn("configuration watcher stopped", "error", err)
			}
		}()
	}

	sighup, stopSignals := cli.ReloadSignals()
	go func() {
		defer stopSignals()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				logger.Info("received SIGHUP, reloading configuration")
				if err := reload(); err != nil {
					logger.Error("configuration reload failed", "error", err)
				}
			}
		}
	}()
}

// applyReload loads the configuration file again and applies the parts that
// can change at runtime: log level and probes. Guard settings are fixed when
// the instrumenter is built, so changes to them only produce a warning.
func applyReload(a *app, logger *logging.Logger) error {
	previous, loaded, err := config.ReloadConfig()
	if err != nil {
		return err
	}
	current := withRunOverrides(loaded)
	config.SetConfig(current)

	if err := logger.SetLevel(current.Telemetry.Logging.Level); err != nil {
		return fmt.Errorf("failed to apply log level: %w", err)
	}
	if err := a.scheduler.Reload(&current.Probes); err != nil {
		return fmt.Errorf("failed to apply probes: %w", err)
	}

	if previous != nil && !reflect.DeepEqual(previous.ClientMetrics, current.ClientMetrics) {
		logger.Warn("client_metrics configuration changed; restart to apply")
	}
	if previous != nil && !reflect.DeepEqual(previous.Telemetry.Metrics, current.Telemetry.Metrics) {
		logger.Warn("telemetry.metrics configuration changed; restart to apply")
	}

	logger.Info("configuration reloaded",
		"log_level", current.Telemetry.Logging.Level,
		"targets", len(current.Probes.Targets),
	)
	return nil
}
