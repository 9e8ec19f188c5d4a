package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"chatrelay/gateway/pkg/audit"
	"chatrelay/gateway/pkg/cli"
	"chatrelay/gateway/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a config file rooted in a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`server:
  listen_address: "127.0.0.1:0"
upstream:
  api_key_env: CHATRELAY_TEST_API_KEY
audit:
  backend: file
  file:
    path: %q
sessions:
  dir: %q
%s`, filepath.Join(dir, "chat.log"), filepath.Join(dir, "sessions"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dir
}

func TestValidateCommand(t *testing.T) {
	path, _ := writeConfig(t, "")

	out, err := execute(t, "validate", "--config", path, "--output", "json")
	require.NoError(t, err)

	var table settingsTable
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	values := map[string]string{}
	for _, s := range table.Settings {
		values[s.Key] = s.Value
	}
	assert.Equal(t, "127.0.0.1:0", values["server.listen_address"])
	assert.Equal(t, "env CHATRELAY_TEST_API_KEY", values["upstream.credential"])
	assert.Equal(t, "file", values["audit.backend"])
}

func TestValidateCommand_InvalidConfig(t *testing.T) {
	path, _ := writeConfig(t, "telemetry:\n  logging:\n    level: loud\n")

	_, err := execute(t, "validate", "--config", path, "--output", "text")
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfigError, cli.ExitCode(err))
	assert.Contains(t, err.Error(), "telemetry.logging.level")
}

func TestValidateCommand_InlineKeyNotPrinted(t *testing.T) {
	path, _ := writeConfig(t, "")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("api_key_env: CHATRELAY_TEST_API_KEY"), []byte("api_key: sk-inline-secret"), 1)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := execute(t, "validate", "--config", path, "--output", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "inline")
	assert.NotContains(t, out, "sk-inline-secret")
}

func TestRunCommand_DryRun(t *testing.T) {
	path, _ := writeConfig(t, "")
	defer func() { runFlags.dryRun = false }()

	out, err := execute(t, "run", "--config", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
}

func TestSessionsCommands(t *testing.T) {
	path, dir := writeConfig(t, "")
	store, err := session.NewStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)

	id := "2025-01-15_143022_abc123def456"
	chat := `{"timestamp":"2025-01-15T14:30:22Z","messages":[{"role":"user","content":"Hallo Welt"}]}`
	require.NoError(t, store.Save(context.Background(), id, json.RawMessage(chat)))

	out, err := execute(t, "sessions", "list", "--config", path, "--output", "csv")
	require.NoError(t, err)
	assert.Equal(t, "SESSION,MESSAGES,PREVIEW\n"+id+",1,Hallo Welt\n", out)

	out, err = execute(t, "sessions", "delete", id, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = store.Load(context.Background(), id)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = execute(t, "sessions", "delete", "../../etc/passwd", "--config", path)
	assert.Error(t, err)
}

func TestSessionsPrune_RequiresDays(t *testing.T) {
	path, _ := writeConfig(t, "")

	_, err := execute(t, "sessions", "prune", "--config", path)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfigError, cli.ExitCode(err))
}

func TestAuditTail(t *testing.T) {
	path, dir := writeConfig(t, "")
	sink, err := audit.NewFileSink(filepath.Join(dir, "chat.log"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Write(context.Background(), &audit.Record{
			Kind:      audit.KindFeedback,
			Feedback:  &audit.Feedback{Type: audit.FeedbackLike, MessageID: fmt.Sprintf("msg-%d", i)},
			RequestID: fmt.Sprintf("req-%d", i),
		}))
	}
	require.NoError(t, sink.Close())

	out, err := execute(t, "audit", "tail", "-n", "2", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "msg-0")
	assert.Contains(t, out, "msg-1")
	assert.Contains(t, out, "msg-2")

	_, err = execute(t, "audit", "tail", "-n", "0", "--config", path)
	assert.Error(t, err)
}

func TestAuditPrune_FileBackendUnsupported(t *testing.T) {
	path, _ := writeConfig(t, "")

	_, err := execute(t, "audit", "prune", "--days", "7", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support pruning")
}
