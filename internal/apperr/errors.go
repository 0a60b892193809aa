// Package apperr expresses the error taxonomy every component wraps its
// failures into, so callers can branch on kind with errors.Is/errors.As
// instead of matching on message text.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind sentinels. Wrap an underlying error with one of the constructors
// below; errors.Is(err, apperr.ErrNotFound) etc. still works because the
// wrapped error unwraps to the sentinel.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamRejected    = errors.New("upstream rejected")
	ErrConflict            = errors.New("conflict")
	ErrCancelled           = errors.New("cancelled")
)

// appErr wraps an underlying cause with one of the sentinel kinds above,
// plus an optional RetryAfter hint for UpstreamUnavailable.
type appErr struct {
	kind       error
	msg        string
	cause      error
	retryAfter time.Duration
}

func (e *appErr) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *appErr) Unwrap() error {
	return e.kind
}

// Cause returns the wrapped underlying error, if any.
func (e *appErr) Cause() error {
	return e.cause
}

// RetryAfter returns the retry hint attached to an UpstreamUnavailable
// error, or zero if none was set.
func (e *appErr) RetryAfter() time.Duration {
	return e.retryAfter
}

// Validation wraps err as a validation failure (bad input, never retried).
func Validation(msg string, cause error) error {
	return &appErr{kind: ErrValidation, msg: msg, cause: cause}
}

// NotFound wraps err as a missing-resource failure.
func NotFound(msg string, cause error) error {
	return &appErr{kind: ErrNotFound, msg: msg, cause: cause}
}

// UpstreamUnavailable wraps err as a transient upstream failure (network
// error, 5xx, timeout) — callers should retry after the given duration.
func UpstreamUnavailable(msg string, cause error, retryAfter time.Duration) error {
	return &appErr{kind: ErrUpstreamUnavailable, msg: msg, cause: cause, retryAfter: retryAfter}
}

// UpstreamRejected wraps err as a permanent upstream rejection (4xx other
// than auth, malformed request the client will never accept) — callers
// must not retry without changing the request.
func UpstreamRejected(msg string, cause error) error {
	return &appErr{kind: ErrUpstreamRejected, msg: msg, cause: cause}
}

// Conflict wraps err as a state conflict (unique-constraint race, stale
// write) that the caller can usually resolve by re-reading and retrying.
func Conflict(msg string, cause error) error {
	return &appErr{kind: ErrConflict, msg: msg, cause: cause}
}

// Cancelled wraps context.Canceled/DeadlineExceeded so callers can
// distinguish a deliberate shutdown from a real failure.
func Cancelled(msg string, cause error) error {
	return &appErr{kind: ErrCancelled, msg: msg, cause: cause}
}

// RetryAfter extracts the retry hint from an UpstreamUnavailable error,
// returning false if err isn't one or carries no hint.
func RetryAfter(err error) (time.Duration, bool) {
	var ae *appErr
	if errors.As(err, &ae) && errors.Is(ae.kind, ErrUpstreamUnavailable) && ae.retryAfter > 0 {
		return ae.retryAfter, true
	}
	return 0, false
}

// Is reports whether err (or anything it wraps) is of the given kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
