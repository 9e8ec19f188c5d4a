package audit

import (
	"context"
	"sync"
	"time"
)

// MemorySink keeps records in memory. It is used in tests and when no
// persistent audit trail is wanted.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends a copy of rec.
func (s *MemorySink) Write(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	cp := *rec
	if rec.Feedback != nil {
		fb := *rec.Feedback
		cp.Feedback = &fb
	}
	s.records = append(s.records, cp)
	return nil
}

// Records returns a copy of all stored records.
func (s *MemorySink) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Tail renders the last n records as log lines.
func (s *MemorySink) Tail(_ context.Context, n int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.records) - n
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, len(s.records)-start)
	for i := start; i < len(s.records); i++ {
		lines = append(lines, FormatLine(&s.records[i]))
	}
	return lines, nil
}

// Prune removes records older than before.
func (s *MemorySink) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

// Close marks the sink closed.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
