package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends one FormatLine per record to a text file.
type FileSink struct {
	path string

	mu     sync.Mutex
	f      *os.File
	closed bool
}

// NewFileSink opens (or creates) the log at path. The parent directory is
// created with mode 0700 and the file with mode 0600.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, NewStorageError("file", "open", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, NewStorageError("file", "open", err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Path returns the log file path.
func (s *FileSink) Path() string {
	return s.path
}

// Write appends rec as a single line.
func (s *FileSink) Write(_ context.Context, rec *Record) error {
	line := FormatLine(rec) + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.f.WriteString(line); err != nil {
		return NewStorageError("file", "write", err)
	}
	return nil
}

// Tail returns the last n lines of the log, oldest first.
func (s *FileSink) Tail(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, NewStorageError("file", "tail", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	next := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, NewStorageError("file", "tail", fmt.Errorf("reading %s: %w", s.path, err))
	}

	if len(ring) < n || next == 0 {
		return ring, nil
	}
	return append(ring[next:], ring[:next]...), nil
}

// Close closes the file. Further writes return ErrClosed.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
