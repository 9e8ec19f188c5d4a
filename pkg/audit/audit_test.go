package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/gateway/pkg/config"
)

func chatRecord(ts time.Time, status int, terminal string) *Record {
	return &Record{
		ID:             "rec-" + ts.Format("150405.000"),
		Timestamp:      ts,
		Kind:           KindChat,
		ClientAddress:  "203.0.113.7",
		StatusCode:     status,
		MessageCount:   3,
		Model:          "deepseek-chat",
		TrainingOptOut: true,
		Terminal:       terminal,
		Frames:         12,
	}
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		rec  *Record
		want string
	}{
		{
			name: "successful stream",
			rec:  chatRecord(ts, 200, "success"),
			want: "2025-01-02 15:04:05 | IP: 203.0.113.7 | RESPONSE | 200 | 3 messages | deepseek-chat | success | frames: 12 | no_training: true",
		},
		{
			name: "upstream rejection",
			rec: &Record{
				Timestamp:     ts,
				Kind:          KindChat,
				ClientAddress: "203.0.113.7",
				StatusCode:    429,
				MessageCount:  1,
				Model:         "m",
				ErrorSummary:  "upstream API error (status 429):\n  slow down",
			},
			want: "2025-01-02 15:04:05 | IP: 203.0.113.7 | ERROR | 429 | 1 messages | m | no_training: false | upstream API error (status 429): slow down",
		},
		{
			name: "transport failure is an error",
			rec:  chatRecord(ts, 200, "transport_failure"),
			want: "2025-01-02 15:04:05 | IP: 203.0.113.7 | ERROR | 200 | 3 messages | deepseek-chat | transport_failure | frames: 12 | no_training: true",
		},
		{
			name: "feedback",
			rec: &Record{
				Timestamp: ts,
				Kind:      KindFeedback,
				Feedback:  &Feedback{Type: FeedbackLike, MessageID: "m-17", Preview: "Sure, here is"},
			},
			want: `2025-01-02 15:04:05 | IP: unknown | FEEDBACK | LIKE | msgId: m-17 | "Sure, here is"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLine(tt.rec))
		})
	}
}

func TestTruncatePreview(t *testing.T) {
	assert.Equal(t, "short", TruncatePreview("short"))

	long := strings.Repeat("ä", 80)
	got := TruncatePreview(long)
	assert.Equal(t, MaxPreviewLength, len([]rune(got)))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Write(ctx, chatRecord(base.Add(time.Duration(i)*time.Minute), 200, "success")))
	}

	lines, err := sink.Tail(ctx, 3)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "2025-03-01 10:02:00"), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "2025-03-01 10:04:00"), lines[2])

	all, err := sink.Tail(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Write(ctx, chatRecord(base, 200, "success")), ErrClosed)
}

func TestFileSink_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, chatRecord(ts, 200, "success")))
	require.NoError(t, first.Close())

	second, err := NewFileSink(path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Write(ctx, chatRecord(ts, 500, "")))

	lines, err := second.Tail(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Write(ctx, chatRecord(now.Add(-48*time.Hour), 200, "success")))
	require.NoError(t, sink.Write(ctx, chatRecord(now, 429, "")))

	lines, err := sink.Tail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "| 429 |")

	removed, err := sink.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, sink.Records(), 1)
}

func TestSQLiteSink(t *testing.T) {
	sink, err := NewSQLiteSink(config.SQLiteConfig{Path: ":memory:", BusyTimeout: time.Second})
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	old := chatRecord(now.Add(-10*24*time.Hour), 200, "success")
	old.ID = "old"
	recent := chatRecord(now, 200, "transport_failure")
	recent.ID = "recent"
	recent.ErrorSummary = "unexpected EOF"
	fb := &Record{
		ID:        "fb",
		Timestamp: now.Add(time.Second),
		Kind:      KindFeedback,
		Feedback:  &Feedback{Type: FeedbackDislike, MessageID: "m-3", Preview: "nope"},
	}

	for _, rec := range []*Record{old, recent, fb} {
		require.NoError(t, sink.Write(ctx, rec))
	}

	got, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, KindFeedback, got[0].Kind)
	require.NotNil(t, got[0].Feedback)
	assert.Equal(t, FeedbackDislike, got[0].Feedback.Type)
	assert.Equal(t, "transport_failure", got[1].Terminal)
	assert.Equal(t, "unexpected EOF", got[1].ErrorSummary)
	assert.True(t, got[1].TrainingOptOut)

	lines, err := sink.Tail(ctx, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "transport_failure")
	assert.Contains(t, lines[1], "FEEDBACK")

	removed, err := sink.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err = sink.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNewSink(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.AuditConfig
		wantErr bool
	}{
		{name: "file", cfg: config.AuditConfig{Backend: "file", File: config.AuditFileConfig{Path: filepath.Join(dir, "a.log")}}},
		{name: "sqlite", cfg: config.AuditConfig{Backend: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "a.db"), WALMode: true}}},
		{name: "sqlite pure go", cfg: config.AuditConfig{Backend: "sqlite", SQLite: config.SQLiteConfig{Driver: "sqlite", Path: filepath.Join(dir, "b.db"), BusyTimeout: time.Second}}},
		{name: "memory", cfg: config.AuditConfig{Backend: "memory"}},
		{name: "unknown", cfg: config.AuditConfig{Backend: "kafka"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSink(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, sink.Close())
		})
	}
}

// failingSink fails every write.
type failingSink struct {
	mu     sync.Mutex
	writes int
}

func (s *failingSink) Write(context.Context, *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return errors.New("disk full")
}

func (s *failingSink) Close() error { return nil }

// blockingSink blocks writes until released.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Write(context.Context, *Record) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close() error { return nil }

type countingObserver struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (o *countingObserver) ObserveAuditWrite(_ string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func TestRecorder_StampsAndDrains(t *testing.T) {
	sink := NewMemorySink()
	obs := &countingObserver{}
	r := NewRecorder(sink, RecorderConfig{Backend: "memory", AsyncBuffer: 16}, obs)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Record(ctx, Record{Kind: KindChat, StatusCode: 200}))
	}
	require.NoError(t, r.Close())

	records := sink.Records()
	require.Len(t, records, 10)
	seen := make(map[string]bool)
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.Timestamp.IsZero())
		assert.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
	assert.Equal(t, 10, obs.ok)

	assert.ErrorIs(t, r.Record(ctx, Record{}), ErrClosed)
}

func TestRecorder_SwallowsSinkFailure(t *testing.T) {
	sink := &failingSink{}
	obs := &countingObserver{}
	r := NewRecorder(sink, RecorderConfig{Backend: "test"}, obs)
	defer r.Close()

	assert.NoError(t, r.Record(context.Background(), Record{Kind: KindChat}))
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, 1, obs.failed)
}

func TestRecorder_QueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	r := NewRecorder(sink, RecorderConfig{Backend: "test", AsyncBuffer: 1, WriteTimeout: 50 * time.Millisecond}, nil)

	ctx := context.Background()
	var lastErr error
	for i := 0; i < 5 && lastErr == nil; i++ {
		lastErr = r.Record(ctx, Record{Kind: KindChat})
	}
	assert.ErrorIs(t, lastErr, ErrQueueFull)

	close(sink.release)
	require.NoError(t, r.Close())
}

func TestStorageError(t *testing.T) {
	cause := errors.New("locked")
	err := NewStorageError("sqlite", "write", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "backend=sqlite")
}

func TestLogHandler(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, sink.Write(ctx, chatRecord(base.Add(time.Duration(i)*time.Minute), 200, "success")))
	}

	tests := []struct {
		name       string
		method     string
		query      string
		wantStatus int
		wantLines  int
	}{
		{name: "default count", method: http.MethodGet, wantStatus: 200, wantLines: 3},
		{name: "explicit count", method: http.MethodGet, query: "?lines=1", wantStatus: 200, wantLines: 1},
		{name: "more than stored", method: http.MethodGet, query: "?lines=50", wantStatus: 200, wantLines: 4},
		{name: "bad count", method: http.MethodGet, query: "?lines=-2", wantStatus: 400},
		{name: "post", method: http.MethodPost, wantStatus: 405},
	}

	h := NewLogHandler(sink, 3, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/log"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLines == 0 {
				return
			}
			assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
			assert.Len(t, lines, tt.wantLines)
			assert.True(t, strings.HasPrefix(lines[len(lines)-1], "2025-03-01 10:03:00"), lines[len(lines)-1])
		})
	}
}

func TestLogHandler_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	NewLogHandler(NewMemorySink(), 0, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/log", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no log entries\n", rec.Body.String())
}
