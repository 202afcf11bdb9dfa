// Package apperr defines the error taxonomy shared across voxsync.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel conditions. Remote failures wrap exactly one of these so callers
// can classify with errors.Is without inspecting status codes themselves.
var (
	// ErrNotAuthenticated means no credential is configured at all. No
	// network call was made.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthExpired means the remote rejected the credential (401). The
	// stored token has already been cleared; the user must log in again.
	ErrAuthExpired = errors.New("authentication expired")

	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited is terminal: the retry budget for 429 responses was
	// exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient covers any other non-2xx response. Safe to retry on the
	// next sync pass, never auto-retried in place.
	ErrTransient = errors.New("transient service error")

	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// RequestError carries the diagnostic detail of a failed remote call. The
// detail is for the log only; user-facing notices use Message alone.
type RequestError struct {
	Status  int
	Message string
	Body    string
	Headers http.Header
	Kind    error // one of the sentinels above
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%v (HTTP %d)", e.Kind, e.Status)
}

func (e *RequestError) Unwrap() error { return e.Kind }

// Request builds a RequestError wrapping the given sentinel.
func Request(kind error, status int, message, body string, headers http.Header) *RequestError {
	return &RequestError{
		Status:  status,
		Message: message,
		Body:    body,
		Headers: headers,
		Kind:    kind,
	}
}
