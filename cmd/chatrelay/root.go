package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"chatrelay/gateway/pkg/cli"
	"chatrelay/gateway/pkg/config"

	"github.com/spf13/cobra"
)

// defaultConfigFile is read when present. A missing default file means
// built-in defaults plus environment overrides.
const defaultConfigFile = "config.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Chatrelay - streaming relay for chat completions",
	Long: `Chatrelay relays chat-completion requests from a browser UI to an
upstream completion API and streams the answer back.

It provides:
  - A streaming relay that only commits response headers once the
    upstream outcome is known
  - Server-side credential handling with file rotation
  - Saved chat sessions and conversation exports
  - An append-only audit trail with retention
  - Prometheus metrics and OpenTelemetry tracing`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configPath returns the file to load. An explicitly named file must exist;
// the default one is optional.
func configPath(cmd *cobra.Command) string {
	if cmd.Flags().Changed("config") || cfgFile != defaultConfigFile {
		return cfgFile
	}
	if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return cfgFile
}

// loadConfig loads the configuration for cmd and installs it as the
// global instance.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}
	return cfg, nil
}
