package relay

import (
	"fmt"
	"io"
	"net/http"

	"chatrelay/gateway/pkg/upstream"
)

// Mode is how the client response will be shaped: *ErrorJSON or *EventStream.
type Mode interface {
	mode()
}

// ErrorPayload is the JSON error envelope sent to clients.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ErrorJSON is a buffered JSON error response.
type ErrorJSON struct {
	StatusCode int
	Payload    ErrorPayload
}

func (*ErrorJSON) mode() {}

// EventStream is a streamed SSE response fed from Body.
type EventStream struct {
	Body io.ReadCloser
}

func (*EventStream) mode() {}

// Client-facing error messages.
const (
	MsgUpstreamUnreachable = "upstream API request failed"
	MsgServerConfiguration = "server configuration error"
)

// Classify maps an upstream outcome to a response mode. It performs no I/O.
func Classify(o upstream.Outcome) Mode {
	switch o := o.(type) {
	case *upstream.Accepted:
		return &EventStream{Body: o.Body}

	case *upstream.Rejected:
		status := o.StatusCode
		if status < 100 || status > 999 {
			status = http.StatusBadGateway
		}
		return &ErrorJSON{
			StatusCode: status,
			Payload: ErrorPayload{
				Error:   fmt.Sprintf("upstream API error (status %d)", o.StatusCode),
				Details: o.Body,
			},
		}

	case *upstream.ConnectFailure:
		if o.Reason == upstream.ReasonCredential {
			return &ErrorJSON{
				StatusCode: http.StatusInternalServerError,
				Payload:    ErrorPayload{Error: MsgServerConfiguration},
			}
		}
		payload := ErrorPayload{Error: MsgUpstreamUnreachable}
		if o.Err != nil {
			payload.Details = o.Err.Error()
		}
		return &ErrorJSON{StatusCode: http.StatusInternalServerError, Payload: payload}

	default:
		return &ErrorJSON{
			StatusCode: http.StatusInternalServerError,
			Payload:    ErrorPayload{Error: MsgUpstreamUnreachable, Details: fmt.Sprintf("unexpected outcome %T", o)},
		}
	}
}
