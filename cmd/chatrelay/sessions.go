package main

import (
	"fmt"
	"strconv"

	"chatrelay/gateway/pkg/cli"
	"chatrelay/gateway/pkg/retention"
	"chatrelay/gateway/pkg/session"

	"github.com/spf13/cobra"
)

var sessionsFlags struct {
	output string
	days   int
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved chat sessions",
	Long: `Inspect and clean up the session store used by the chat UI.

Examples:
  # List sessions, newest first
  chatrelay sessions list

  # Delete one session
  chatrelay sessions delete 2025-01-15_143022_a1b2c3d4e5f6

  # Delete sessions older than 90 days
  chatrelay sessions prune --days 90`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE:  listSessions,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteSession,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  pruneSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd, sessionsPruneCmd)

	sessionsListCmd.Flags().StringVarP(&sessionsFlags.output, "output", "o", "text", "output format: text, json, csv")
	sessionsPruneCmd.Flags().IntVar(&sessionsFlags.days, "days", 0, "retention in days (uses sessions.retention.days if not specified)")
}

func openSessionStore(cmd *cobra.Command) (*session.Store, int, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, err
	}
	store, err := session.NewStore(cfg.Sessions.Dir)
	if err != nil {
		return nil, 0, cli.NewCommandError(cmd.Name(), err)
	}
	return store, cfg.Sessions.Retention.Days, nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(sessionsFlags.output)
	if err != nil {
		return err
	}
	store, _, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	summaries, err := store.List(cmd.Context())
	if err != nil {
		return cli.NewCommandError("sessions list", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), sessionTable{Sessions: summaries})
}

func deleteSession(cmd *cobra.Command, args []string) error {
	store, _, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return cli.NewCommandError("sessions delete", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Session %s deleted\n", args[0])
	return nil
}

func pruneSessions(cmd *cobra.Command, args []string) error {
	store, days, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	if sessionsFlags.days > 0 {
		days = sessionsFlags.days
	}
	return runPrune(cmd, "sessions", store, days)
}

// runPrune deletes entries of target older than days.
func runPrune(cmd *cobra.Command, name string, target retention.Target, days int) error {
	if days <= 0 {
		return cli.NewConfigError(name+".retention.days", "no retention period configured; pass --days")
	}
	pruner := retention.NewPruner(name, target, retention.Config{RetentionDays: days}, nil)
	n, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError(name+" prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d %s entries older than %s\n", n, name, pruner.Cutoff().Format("2006-01-02"))
	return nil
}

// sessionTable renders session summaries for the list command.
type sessionTable struct {
	Sessions []session.Summary `json:"sessions"`
}

func (t sessionTable) Header() []string {
	return []string{"SESSION", "MESSAGES", "PREVIEW"}
}

func (t sessionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Sessions))
	for _, s := range t.Sessions {
		rows = append(rows, []string{s.SessionID, strconv.Itoa(s.MessageCount), s.Preview})
	}
	return rows
}
