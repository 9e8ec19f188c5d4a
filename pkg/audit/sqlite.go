package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"chatrelay/gateway/pkg/config"
)

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema creates the audit tables.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    recorded_at TIMESTAMP NOT NULL,
    kind TEXT NOT NULL,
    request_id TEXT,
    client_address TEXT,
    status_code INTEGER,
    message_count INTEGER,
    model TEXT,
    training_opt_out BOOLEAN,
    terminal TEXT,
    frames INTEGER,
    duration_ms INTEGER,
    error_summary TEXT,
    feedback_type TEXT,
    feedback_message_id TEXT,
    feedback_preview TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_records(kind);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

const (
	insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`
	getSchemaVersion    = `SELECT MAX(version) FROM schema_version`

	insertRecord = `
INSERT INTO audit_records (
    id, recorded_at, kind, request_id, client_address, status_code, message_count,
    model, training_opt_out, terminal, frames, duration_ms, error_summary,
    feedback_type, feedback_message_id, feedback_preview
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecent = `
SELECT recorded_at, kind, client_address, status_code, message_count, model,
       training_opt_out, terminal, frames, error_summary,
       feedback_type, feedback_message_id, feedback_preview
FROM audit_records ORDER BY recorded_at DESC, rowid DESC LIMIT ?`

	deleteBefore = `DELETE FROM audit_records WHERE recorded_at < ?`
)

// SQLiteSink stores audit records in SQLite.
type SQLiteSink struct {
	db     *sql.DB
	insert *sql.Stmt
	logger *slog.Logger
}

// NewSQLiteSink opens the database described by cfg and creates the schema.
func NewSQLiteSink(cfg config.SQLiteConfig) (*SQLiteSink, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, NewStorageError("sqlite", "open", err)
		}
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.Path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteSink{
		db:     db,
		logger: slog.Default().With("component", "audit.sqlite"),
	}
	if err := s.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite audit storage initialized",
		"path", cfg.Path,
		"driver", driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteSink) initialize(cfg config.SQLiteConfig) error {
	if cfg.WALMode && cfg.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if cfg.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
			return NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	stmt, err := s.db.Prepare(insertRecord)
	if err != nil {
		return NewStorageError("sqlite", "prepare", err)
	}
	s.insert = stmt
	return nil
}

// Write inserts rec.
func (s *SQLiteSink) Write(ctx context.Context, rec *Record) error {
	var fbType, fbMsg, fbPreview sql.NullString
	if rec.Feedback != nil {
		fbType = sql.NullString{String: rec.Feedback.Type, Valid: true}
		fbMsg = sql.NullString{String: rec.Feedback.MessageID, Valid: true}
		fbPreview = sql.NullString{String: rec.Feedback.Preview, Valid: true}
	}

	_, err := s.insert.ExecContext(ctx,
		rec.ID,
		rec.Timestamp.UTC(),
		string(rec.Kind),
		rec.RequestID,
		rec.ClientAddress,
		rec.StatusCode,
		rec.MessageCount,
		rec.Model,
		rec.TrainingOptOut,
		rec.Terminal,
		rec.Frames,
		rec.Duration.Milliseconds(),
		rec.ErrorSummary,
		fbType, fbMsg, fbPreview,
	)
	if err != nil {
		return NewStorageError("sqlite", "write", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecent, n)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                      Record
			kind                     string
			client, model, terminal  sql.NullString
			summary                  sql.NullString
			status, msgCount, frames sql.NullInt64
			optOut                   sql.NullBool
			fbType, fbMsg, fbPreview sql.NullString
		)
		if err := rows.Scan(&rec.Timestamp, &kind, &client, &status, &msgCount, &model,
			&optOut, &terminal, &frames, &summary, &fbType, &fbMsg, &fbPreview); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		rec.Kind = Kind(kind)
		rec.ClientAddress = client.String
		rec.StatusCode = int(status.Int64)
		rec.MessageCount = int(msgCount.Int64)
		rec.Model = model.String
		rec.TrainingOptOut = optOut.Bool
		rec.Terminal = terminal.String
		rec.Frames = int(frames.Int64)
		rec.ErrorSummary = summary.String
		if fbType.Valid {
			rec.Feedback = &Feedback{Type: fbType.String, MessageID: fbMsg.String, Preview: fbPreview.String}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	return out, nil
}

// Tail renders the last n records as log lines, oldest first.
func (s *SQLiteSink) Tail(ctx context.Context, n int) ([]string, error) {
	recs, err := s.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(recs))
	for i := range recs {
		lines[len(recs)-1-i] = FormatLine(&recs[i])
	}
	return lines, nil
}

// Prune deletes records older than before and returns the number removed.
func (s *SQLiteSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteBefore, before.UTC())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	return s.db.Close()
}
