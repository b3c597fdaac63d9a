package restclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call.
type Kind string

const (
	// KindNetwork means no HTTP response was received.
	KindNetwork Kind = "network"
	// KindHTTP means the backend answered with a non-2xx status.
	KindHTTP Kind = "http"
	// KindDecode means a 2xx body could not be decoded into the caller's value.
	KindDecode Kind = "decode"
)

// Error is the single error type returned by Client. Message is always human readable:
// the backend's own message when it sent one, otherwise "HTTP <status>: <statusText>".
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	Status     int
	StatusText string
	Message    string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTP failure.
func StatusCode(err error) int {
	var rerr *Error
	if errors.As(err, &rerr) && rerr.Kind == KindHTTP {
		return rerr.Status
	}
	return 0
}

// IsStatus reports whether err is an HTTP failure with the given status.
func IsStatus(err error, status int) bool {
	return StatusCode(err) == status
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Kind == KindNetwork
}

// IsNotFound is shorthand for IsStatus(err, 404).
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func syntheticMessage(status int, statusText string) string {
	return fmt.Sprintf("HTTP %d: %s", status, statusText)
}
