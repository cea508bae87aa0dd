// Package fault classifies failures into the kinds the cache and UI act on.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// KindUnknown is reported for errors that were never classified.
	KindUnknown Kind = "unknown"

	// KindNotFound is terminal: the resource does not exist, retrying is pointless.
	KindNotFound Kind = "not_found"

	// KindCancelled means the caller abandoned the request.
	KindCancelled Kind = "cancelled"

	// KindTransient covers network failures and 5xx-style responses.
	KindTransient Kind = "transient"

	// KindStorage covers persistence failures. These never leave kvstore.
	KindStorage Kind = "storage"
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP status when the failure came from a response
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound wraps err as a terminal not-found failure.
func NotFound(op string, status int, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Status: status, Err: err}
}

// Cancelled wraps err as a cancellation.
func Cancelled(op string, err error) error {
	return &Error{Kind: KindCancelled, Op: op, Err: err}
}

// Transient wraps err as a retryable failure.
func Transient(op string, status int, err error) error {
	return &Error{Kind: KindTransient, Op: op, Status: status, Err: err}
}

// Storage wraps err as a persistence failure.
func Storage(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// KindOf reports the Kind of err. Bare context cancellation is treated as
// KindCancelled so callers need not wrap it themselves.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool { return KindOf(err) == KindCancelled }

// IsTransient reports whether err may succeed on retry. Unclassified errors
// count as transient.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindUnknown:
		return err != nil
	default:
		return false
	}
}

// StatusOf returns the HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}
