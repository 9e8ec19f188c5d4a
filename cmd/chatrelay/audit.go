package main

import (
	"fmt"

	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/cli"

	"github.com/spf13/cobra"
)

var auditFlags struct {
	lines int
	days  int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long: `Read and prune the audit trail written by the relay.

Examples:
  # Show the last 100 entries
  chatrelay audit tail -n 100

  # Delete entries older than 30 days (sqlite backend)
  chatrelay audit prune --days 30`,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the most recent audit entries",
	Args:  cobra.NoArgs,
	RunE:  tailAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditTailCmd, auditPruneCmd)

	auditTailCmd.Flags().IntVarP(&auditFlags.lines, "lines", "n", 20, "number of entries to print")
	auditPruneCmd.Flags().IntVar(&auditFlags.days, "days", 0, "retention in days (uses audit.retention.days if not specified)")
}

func openAuditSink(cmd *cobra.Command) (audit.Sink, int, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, err
	}
	sink, err := audit.NewSink(cfg.Audit)
	if err != nil {
		return nil, 0, cli.NewCommandError(cmd.Name(), err)
	}
	return sink, cfg.Audit.Retention.Days, nil
}

func tailAudit(cmd *cobra.Command, args []string) error {
	if auditFlags.lines <= 0 || auditFlags.lines > audit.MaxTailLines {
		return fmt.Errorf("--lines must be between 1 and %d", audit.MaxTailLines)
	}
	sink, _, err := openAuditSink(cmd)
	if err != nil {
		return err
	}
	defer sink.Close()

	tailer, ok := sink.(audit.Tailer)
	if !ok {
		return cli.NewCommandError("audit tail", fmt.Errorf("audit backend cannot be read back"))
	}
	lines, err := tailer.Tail(cmd.Context(), auditFlags.lines)
	if err != nil {
		return cli.NewCommandError("audit tail", err)
	}

	out := cmd.OutOrStdout()
	if len(lines) == 0 {
		fmt.Fprintln(out, "no log entries")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	sink, days, err := openAuditSink(cmd)
	if err != nil {
		return err
	}
	defer sink.Close()

	target, ok := sink.(audit.Pruner)
	if !ok {
		return cli.NewCommandError("audit prune", fmt.Errorf("audit backend does not support pruning"))
	}
	if auditFlags.days > 0 {
		days = auditFlags.days
	}
	return runPrune(cmd, "audit", target, days)
}
