package audit

import (
	"context"
	"time"
)

// Kind distinguishes audit entries.
type Kind string

const (
	// KindChat is the terminal outcome of one relay request.
	KindChat Kind = "chat"
	// KindFeedback is a like or dislike sent by the chat UI.
	KindFeedback Kind = "feedback"
)

// Feedback types accepted from clients.
const (
	FeedbackLike    = "LIKE"
	FeedbackDislike = "DISLIKE"
)

// MaxPreviewLength is the number of characters of a feedback preview kept.
const MaxPreviewLength = 60

// Record is one append-only audit entry.
type Record struct {
	ID            string
	Timestamp     time.Time
	Kind          Kind
	RequestID     string
	ClientAddress string

	// Chat fields
	StatusCode     int
	MessageCount   int
	Model          string
	TrainingOptOut bool
	Terminal       string
	Frames         int
	Duration       time.Duration
	ErrorSummary   string

	// Feedback fields
	Feedback *Feedback
}

// Feedback carries a user rating of one assistant message.
type Feedback struct {
	Type      string
	MessageID string
	Preview   string
}

// Sink stores audit records.
type Sink interface {
	// Write appends one record.
	Write(ctx context.Context, rec *Record) error

	// Close releases the sink.
	Close() error
}

// Tailer is implemented by sinks that can render their most recent entries
// as log lines.
type Tailer interface {
	Tail(ctx context.Context, n int) ([]string, error)
}

// Pruner is implemented by sinks that can delete old entries.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}
