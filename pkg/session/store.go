package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
	fileExt  = ".json"
)

// Store keeps sessions as JSON files in a single directory.
type Store struct {
	dir    string
	mu     sync.RWMutex
	logger *slog.Logger
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore opens the store rooted at dir, creating the directory if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, &StorageError{Operation: "init", Cause: err}
	}

	s := &Store{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sessions")
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// Save writes data as the session id, replacing any previous version.
// data must be a non-empty JSON object.
func (s *Store) Save(ctx context.Context, id string, data json.RawMessage) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := checkChatData(data); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format chat data: %w", err)
	}
	buf.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return &StorageError{Operation: "save", ID: id, Cause: err}
	}
	if err := writeFileAtomic(s.dir, s.path(id), buf.Bytes()); err != nil {
		return &StorageError{Operation: "save", ID: id, Cause: err}
	}

	s.logger.DebugContext(ctx, "session saved", "session_id", id, "bytes", buf.Len())
	return nil
}

// Load returns the stored document of session id.
func (s *Store) Load(ctx context.Context, id string) (json.RawMessage, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Operation: "load", ID: id, Cause: err}
	}
	return json.RawMessage(data), nil
}

// List returns a summary of every readable session, newest first.
// Files that cannot be decoded are skipped.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.ids()
	if err != nil {
		return nil, &StorageError{Operation: "list", Cause: err}
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(s.path(id))
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable session", "session_id", id, "error", err)
			continue
		}
		conv, err := ParseConversation(data)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping corrupt session", "session_id", id, "error", err)
			continue
		}
		summaries = append(summaries, summarize(id, conv))
	}
	return summaries, nil
}

// Delete removes session id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return &StorageError{Operation: "delete", ID: id, Cause: err}
	}

	s.logger.DebugContext(ctx, "session deleted", "session_id", id)
	return nil
}

// Prune deletes sessions last written before the cutoff and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ids()
	if err != nil {
		return 0, &StorageError{Operation: "prune", Cause: err}
	}

	var removed int64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := os.Stat(s.path(id))
		if err != nil || !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, &StorageError{Operation: "prune", ID: id, Cause: err}
		}
		removed++
	}
	return removed, nil
}

// Check reports whether the store directory is usable.
func (s *Store) Check(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// ids returns the valid session IDs in the directory, newest first.
// A missing directory holds no sessions.
func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ValidateID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

func checkChatData(data json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || len(fields) == 0 {
		return ErrNoChatData
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in dir and renames it
// over path.
func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
