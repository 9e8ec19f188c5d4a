package api

import (
	"errors"
	"net/http"
)

// Error is a client-visible failure with an HTTP status.
type Error struct {
	Status  int
	Message string
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewError creates an Error.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// BadRequest creates a 400 Error.
func BadRequest(message string) *Error {
	return NewError(http.StatusBadRequest, message)
}

// NotFound creates a 404 Error.
func NotFound(message string) *Error {
	return NewError(http.StatusNotFound, message)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
