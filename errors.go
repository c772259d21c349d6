package goRenew

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrClientNotReady is returned by a zero or closed Client.
	ErrClientNotReady = errors.New("client not ready")
	// ErrInvalidRequest is returned for a request without method or URL.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRenewalFailed matches every *RenewalError.
	ErrRenewalFailed = errors.New("session renewal failed")
	// ErrRenewalTimeout matches a renewal that exceeded Config.Renewal.Timeout.
	ErrRenewalTimeout = errors.New("session renewal timed out")
	// ErrSessionInvalidated is passed to session-lost callbacks when no
	// renewal error is available.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrBuilderUsed is returned by a second Build call on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// StatusError is a response with status >= 400. The body is buffered up to
// Config.Transport.MaxResponseBytes.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s %s -> %d body=%q", e.Method, e.URL, e.StatusCode, truncate(e.Body, 256))
}

// RenewalError is the single error value delivered to the renewal leader and
// every waiter when a renewal fails. StatusCode is zero when the renewal
// endpoint was never reached.
type RenewalError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *RenewalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("session renewal failed: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("session renewal failed: %v", e.Err)
}

func (e *RenewalError) Unwrap() error { return e.Err }

// Is makes every RenewalError match ErrRenewalFailed.
func (e *RenewalError) Is(target error) bool {
	return target == ErrRenewalFailed
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// IsSessionExpired reports whether err is a renewal failure, i.e. the
// session could not be recovered and the user must sign in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrRenewalFailed)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
