package main

import (
	"strconv"

	"chatrelay/gateway/pkg/cli"
	"chatrelay/gateway/pkg/config"

	"github.com/spf13/cobra"
)

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply environment overrides and check
every setting. The effective settings are printed on success.

Examples:
  # Validate the default config file
  chatrelay validate

  # Validate a specific file and print the result as JSON
  chatrelay validate --config prod.yaml --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), newSettingsTable(cfg))
}

// settingsTable lists the effective settings worth checking before a deploy.
// Credentials are reported by source only.
type settingsTable struct {
	Settings []setting `json:"settings"`
}

type setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newSettingsTable(cfg *config.Config) settingsTable {
	credential := "env " + cfg.Upstream.APIKeyEnv
	switch {
	case cfg.Upstream.APIKey != "":
		credential = "inline"
	case cfg.Upstream.APIKeyFile != "":
		credential = "file " + cfg.Upstream.APIKeyFile
	}

	audit := "disabled"
	if cfg.Audit.Enabled {
		audit = cfg.Audit.Backend
	}
	sessions := "disabled"
	if cfg.Sessions.Enabled {
		sessions = cfg.Sessions.Dir
	}

	return settingsTable{Settings: []setting{
		{"server.listen_address", cfg.Server.ListenAddress},
		{"upstream.url", cfg.Upstream.URL},
		{"upstream.credential", credential},
		{"upstream.default_model", cfg.Upstream.DefaultModel},
		{"upstream.connect_timeout", cfg.Upstream.ConnectTimeout.String()},
		{"audit.backend", audit},
		{"audit.retention_days", strconv.Itoa(cfg.Audit.Retention.Days)},
		{"sessions.dir", sessions},
		{"sessions.retention_days", strconv.Itoa(cfg.Sessions.Retention.Days)},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level},
		{"telemetry.metrics.enabled", strconv.FormatBool(cfg.Telemetry.Metrics.Enabled)},
		{"telemetry.tracing.enabled", strconv.FormatBool(cfg.Telemetry.Tracing.Enabled)},
	}}
}

func (t settingsTable) Header() []string { return []string{"SETTING", "VALUE"} }

func (t settingsTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Settings))
	for _, s := range t.Settings {
		rows = append(rows, []string{s.Key, s.Value})
	}
	return rows
}
