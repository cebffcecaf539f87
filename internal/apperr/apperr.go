// Package apperr carries the engine's error taxonomy. Every failure a
// caller can act on is tagged with a Kind; the transport layer maps
// kinds to status codes without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	// KindInternal is an unexpected storage or infrastructure failure.
	KindInternal Kind = iota
	// KindNotFound means a referenced product, variation, order,
	// courier, or wallet does not exist.
	KindNotFound
	// KindFailedPrecondition means the action is impossible in the
	// current state (insufficient stock/funds, already assigned).
	KindFailedPrecondition
	// KindForbidden means the caller does not own the resource.
	KindForbidden
	// KindAborted means a payment rejection or exhausted transaction
	// retries; the caller may retry later.
	KindAborted
	// KindInvalidArgument means malformed input (empty cart,
	// undefined status transition).
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindForbidden:
		return "forbidden"
	case KindAborted:
		return "aborted"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}

// Error is a kinded error. It wraps an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a kinded error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
