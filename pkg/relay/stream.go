package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// Terminal is how a relayed stream ended.
type Terminal string

const (
	// TerminalSuccess means the sentinel arrived or upstream closed cleanly.
	TerminalSuccess Terminal = "success"
	// TerminalTransportFailure means the upstream read failed mid-stream.
	TerminalTransportFailure Terminal = "transport_failure"
	// TerminalCancelled means the client went away or its write failed.
	TerminalCancelled Terminal = "cancelled"
)

// FrameWriter receives frames bound for the client. *Gate implements it.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// StreamResult summarizes a relayed stream.
type StreamResult struct {
	Terminal Terminal
	Frames   int
	SawDone  bool
	Duration time.Duration
	Err      error
}

// Streamer copies upstream event-stream data frames to a FrameWriter.
type Streamer struct {
	// MaxFrameSize bounds one upstream line. Zero uses DefaultMaxFrameSize.
	MaxFrameSize int

	// OnFrame, if set, is called after each frame is delivered.
	OnFrame func()
}

// Relay forwards every "data: " line of body to w verbatim, flushing after
// each. It stops after forwarding the [DONE] sentinel without waiting for
// upstream to close. body is closed on every return path, and also when ctx
// ends so that a blocked read returns.
func (s *Streamer) Relay(ctx context.Context, body io.ReadCloser, w FrameWriter) StreamResult {
	start := time.Now()

	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { body.Close() }) }
	stop := context.AfterFunc(ctx, closeBody)
	defer func() {
		stop()
		closeBody()
	}()

	res := StreamResult{Terminal: TerminalSuccess}
	reader := NewFrameReader(body, s.MaxFrameSize)

	for {
		frame, err := reader.Next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case ctx.Err() != nil:
				res.Terminal = TerminalCancelled
				res.Err = ctx.Err()
			default:
				res.Terminal = TerminalTransportFailure
				res.Err = err
			}
			break
		}

		if !frame.IsData() {
			continue
		}

		if err := w.WriteFrame(frame.Bytes()); err != nil {
			res.Terminal = TerminalCancelled
			res.Err = err
			break
		}
		res.Frames++
		if s.OnFrame != nil {
			s.OnFrame()
		}

		if frame.IsDone() {
			res.SawDone = true
			break
		}
	}

	res.Duration = time.Since(start)
	return res
}
