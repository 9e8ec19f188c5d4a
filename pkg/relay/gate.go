package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// State is the position of a Gate in its lifecycle.
type State int

const (
	// StateUncommitted means no status line or header has been written.
	StateUncommitted State = iota
	// StateCommittedError means a JSON error response was chosen.
	StateCommittedError
	// StateCommittedStream means SSE headers were written and flushed.
	StateCommittedStream
	// StateClosed means the response is complete.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUncommitted:
		return "uncommitted"
	case StateCommittedError:
		return "committed_error"
	case StateCommittedStream:
		return "committed_stream"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrAlreadyCommitted is returned when a second header set is attempted.
	// It always indicates a bug in the caller.
	ErrAlreadyCommitted = errors.New("relay: response headers already committed")

	// ErrNotStreaming is returned when a frame is written outside the stream state.
	ErrNotStreaming = errors.New("relay: response is not an event stream")
)

// Gate owns the client ResponseWriter for one request and guarantees that
// exactly one header set is written. A Gate is not safe for concurrent use;
// the request goroutine is its only writer.
type Gate struct {
	w     http.ResponseWriter
	rc    *http.ResponseController
	cors  http.Header
	state State
}

// NewGate wraps w. cors holds headers added to every committed response;
// it may be nil.
func NewGate(w http.ResponseWriter, cors http.Header) *Gate {
	return &Gate{
		w:    w,
		rc:   http.NewResponseController(w),
		cors: cors,
	}
}

// State returns the current state.
func (g *Gate) State() State {
	return g.state
}

// Commit writes the headers for mode. For *ErrorJSON the body is written too
// and the gate closes. For *EventStream the headers are flushed and frames
// may follow via WriteFrame.
func (g *Gate) Commit(m Mode) error {
	switch m := m.(type) {
	case *ErrorJSON:
		return g.CommitError(m.StatusCode, m.Payload)
	case *EventStream:
		return g.CommitStream()
	default:
		return fmt.Errorf("relay: unknown mode %T", m)
	}
}

// CommitError writes a JSON error response and closes the gate.
func (g *Gate) CommitError(status int, payload ErrorPayload) error {
	if g.state != StateUncommitted {
		return ErrAlreadyCommitted
	}
	g.state = StateCommittedError

	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"internal error"}`)
	}

	h := g.w.Header()
	g.applyCORS(h)
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Cache-Control", "no-store")
	g.w.WriteHeader(status)

	_, err = g.w.Write(body)
	g.state = StateClosed
	return err
}

// CommitStream writes status 200 with event-stream headers and flushes them
// so the client sees the stream open before the first frame.
func (g *Gate) CommitStream() error {
	if g.state != StateUncommitted {
		return ErrAlreadyCommitted
	}
	g.state = StateCommittedStream

	h := g.w.Header()
	g.applyCORS(h)
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Del("Content-Length")
	g.w.WriteHeader(http.StatusOK)

	return g.rc.Flush()
}

// WriteFrame writes one SSE frame followed by the blank-line terminator and
// flushes it.
func (g *Gate) WriteFrame(frame []byte) error {
	if g.state != StateCommittedStream {
		return ErrNotStreaming
	}
	if _, err := g.w.Write(frame); err != nil {
		return err
	}
	if _, err := g.w.Write(frameTerminator); err != nil {
		return err
	}
	return g.rc.Flush()
}

// Close marks the response complete. Further commits and frames fail.
func (g *Gate) Close() {
	g.state = StateClosed
}

var frameTerminator = []byte("\n\n")

func (g *Gate) applyCORS(h http.Header) {
	for k, vs := range g.cors {
		h[k] = append([]string(nil), vs...)
	}
}
