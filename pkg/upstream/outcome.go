package upstream

import (
	"io"
	"net/http"
)

// Outcome is the result of opening a completion call. It is exactly one of
// *ConnectFailure, *Rejected, or *Accepted.
type Outcome interface {
	outcome()
}

// FailureReason classifies a ConnectFailure.
type FailureReason string

const (
	// ReasonNetwork covers DNS, dial, TLS, and protocol errors before headers.
	ReasonNetwork FailureReason = "network"
	// ReasonTimeout means no response headers arrived within the connect timeout.
	ReasonTimeout FailureReason = "timeout"
	// ReasonCancelled means the caller's context ended before headers arrived.
	ReasonCancelled FailureReason = "cancelled"
	// ReasonCredential means no credential was available, so nothing was sent.
	ReasonCredential FailureReason = "credential"
)

// ConnectFailure means the upstream API was never reached or never answered.
type ConnectFailure struct {
	Reason FailureReason
	Err    error
}

func (*ConnectFailure) outcome() {}

// Error implements the error interface.
func (f *ConnectFailure) Error() string {
	if f.Err == nil {
		return "upstream connect failed: " + string(f.Reason)
	}
	return "upstream connect failed (" + string(f.Reason) + "): " + f.Err.Error()
}

// Unwrap returns the underlying error.
func (f *ConnectFailure) Unwrap() error {
	return f.Err
}

// Rejected means the upstream API answered with a non-2xx status.
// Body holds at most the configured error body limit.
type Rejected struct {
	StatusCode int
	Body       string
}

func (*Rejected) outcome() {}

// Accepted means the upstream API answered 2xx. Body is positioned at the
// start of the event stream and must be closed by the consumer.
type Accepted struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

func (*Accepted) outcome() {}
