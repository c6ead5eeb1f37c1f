package api

import (
	"errors"
	"fmt"
)

// Error describes a failed API call.
type Error struct {
	Method    string
	URL       string
	Status    int
	Message   string // server reported message, may be empty
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case e.Status != 0:
		return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.Status)
	default:
		return fmt.Sprintf("%s %s failed", e.Method, e.URL)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MessageOf returns the server reported message carried by err, or "" when
// the error did not come from the server.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
