package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrInvalidKey     = errors.New("invalid object key")
	// ErrTransient marks rate limiting, server errors and timeouts.
	ErrTransient = errors.New("transient storage error")
	// ErrAuthentication is returned when no usable credential can be resolved.
	ErrAuthentication = errors.New("credential resolution failed")
)

// ObjectError wraps a backend error with the operation and key it hit.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

// transientError keeps the backend's message while matching ErrTransient.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err should be retried. A deadline that fired on
// the request context counts as a timeout; a canceled parent does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// Kind is a short label for an error, used in reports and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrBucketNotFound):
		return "bucket-not-found"
	case errors.Is(err, ErrAccessDenied):
		return "access-denied"
	case errors.Is(err, ErrInvalidKey):
		return "invalid-key"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case IsTransient(err):
		return "transient"
	default:
		return "unknown"
	}
}
