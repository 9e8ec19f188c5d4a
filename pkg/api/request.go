package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is given.
const DefaultMaxBodyBytes = 10 << 20

// DecodeJSON reads the request body into v. An empty body, malformed JSON
// and an oversized body are reported as *Error.
func DecodeJSON(r *http.Request, maxBytes int64, v any) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return &Error{Status: http.StatusBadRequest, Message: "failed to read request body", Details: err.Error()}
	}
	if int64(len(body)) > maxBytes {
		return &Error{
			Status:  http.StatusRequestEntityTooLarge,
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return BadRequest("empty request")
	}

	if err := json.Unmarshal(body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &Error{Status: http.StatusBadRequest, Message: "invalid field type", Details: typeErr.Field}
		}
		return &Error{Status: http.StatusBadRequest, Message: "invalid JSON", Details: err.Error()}
	}
	return nil
}

// ClientAddress returns the host part of the request's remote address.
func ClientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
