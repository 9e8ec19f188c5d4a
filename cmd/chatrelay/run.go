package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatrelay/gateway/pkg/cli"
	"chatrelay/gateway/pkg/config"
	"chatrelay/gateway/pkg/server"
	"chatrelay/gateway/pkg/telemetry/logging"
	"chatrelay/gateway/pkg/telemetry/tracing"

	"github.com/spf13/cobra"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the chat relay server",
	Long: `Start the chat relay server with the specified configuration.

The server listens on the configured address, relays POST /api/chat to the
upstream completion API and serves sessions, exports, feedback and the
audit log viewer.

Examples:
  # Start with default config
  chatrelay run

  # Start with custom config
  chatrelay run --config /etc/chatrelay/config.yaml

  # Override listen address
  chatrelay run --listen 0.0.0.0:8080

  # Validate config without starting server
  chatrelay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.WrapConfigError(err)
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.WrapConfigError(err)
	}
	slog.SetDefault(logger.Logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(cmd, cfg)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	a.start(ctx)
	watchConfig(ctx, configPath(cmd), logger)

	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	srv := server.NewServer(cfg.Server, a.routes, logger.Logger)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// watchConfig reloads the configuration file on change. Only the log level
// takes effect without a restart.
func watchConfig(ctx context.Context, path string, logger *logging.Logger) {
	if path == "" {
		return
	}
	fw, err := config.NewFileWatcher(path, 0, logger.Logger)
	if err != nil {
		logger.Warn("configuration hot reload disabled", "error", err)
		return
	}
	go func() {
		err := fw.Watch(ctx, func() {
			cfg, err := config.ReloadConfig(path)
			if err != nil {
				logger.Error("configuration reload failed", "error", err)
				return
			}
			applyLevel(logger, cfg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("configuration watcher stopped", "error", err)
		}
	}()
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatrelay v%s\n", Version)
	if path := configPath(cmd); path != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", path)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")

	slog.Debug("upstream configured", "url", cfg.Upstream.URL, "model", cfg.Upstream.DefaultModel)
	if cfg.Audit.Enabled {
		slog.Debug("audit enabled", "backend", cfg.Audit.Backend)
	}
	if cfg.Sessions.Enabled {
		slog.Debug("sessions enabled", "dir", cfg.Sessions.Dir)
	}
}
