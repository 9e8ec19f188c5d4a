package relay

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxFrameSize bounds a single upstream line.
const DefaultMaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when a line exceeds the reader's limit.
var ErrFrameTooLarge = errors.New("relay: event stream frame too large")

var (
	dataPrefix   = []byte("data: ")
	doneSentinel = []byte("[DONE]")
)

// Frame is one non-empty line of an event stream, without its line ending.
// Its bytes are only valid until the next call to FrameReader.Next.
type Frame struct {
	raw []byte
}

// Bytes returns the line as received.
func (f Frame) Bytes() []byte {
	return f.raw
}

// IsData reports whether the line is a "data: " field.
func (f Frame) IsData() bool {
	return bytes.HasPrefix(f.raw, dataPrefix)
}

// Payload returns the data after the "data: " prefix, or nil for other lines.
func (f Frame) Payload() []byte {
	if !f.IsData() {
		return nil
	}
	return f.raw[len(dataPrefix):]
}

// IsDone reports whether the frame carries the end-of-stream sentinel.
func (f Frame) IsDone() bool {
	return f.IsData() && bytes.Equal(bytes.TrimSpace(f.Payload()), doneSentinel)
}

// FrameReader splits an event stream into lines. A line cut off by a read
// error is discarded rather than returned, so callers never see a partial
// frame; an unterminated last line before a clean EOF is returned.
type FrameReader struct {
	r   *bufio.Reader
	buf []byte
	max int
}

// NewFrameReader reads frames from r. A maxSize of zero uses DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameReader{r: bufio.NewReaderSize(r, 32*1024), max: maxSize}
}

// Next returns the next non-empty line. It returns io.EOF at the clean end of
// the stream and the underlying error on a failed read.
func (fr *FrameReader) Next() (Frame, error) {
	for {
		line, err := fr.readLine()
		if err != nil {
			return Frame{}, err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		return Frame{raw: line}, nil
	}
}

func (fr *FrameReader) readLine() ([]byte, error) {
	fr.buf = fr.buf[:0]
	for {
		chunk, err := fr.r.ReadSlice('\n')
		fr.buf = append(fr.buf, chunk...)
		if len(fr.buf) > fr.max {
			return nil, ErrFrameTooLarge
		}

		switch {
		case err == nil:
			return fr.buf, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			if len(fr.buf) > 0 {
				return fr.buf, nil
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}
