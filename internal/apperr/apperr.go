// Package apperr defines the error taxonomy shared across the search core
// (spec.md §7). Components return a *Error carrying one of the fixed Kind
// values rather than ad hoc error strings, so the HTTP layer can map a
// failure onto the right status code and retry hint without string sniffing.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the five error categories spec.md §7 defines.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindUnavailable       Kind = "unavailable"
	KindDependencyFailed  Kind = "dependency_failed"
	KindResourceExhausted Kind = "resource_exhausted"
	KindInternal          Kind = "internal"
)

// Retryable reports whether callers may retry an error of this kind.
func (k Kind) Retryable() bool {
	return k == KindUnavailable
}

// HTTPStatus maps a Kind onto the response status spec.md §7 mandates.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return 400
	case KindResourceExhausted:
		return 429
	case KindUnavailable, KindDependencyFailed, KindInternal:
		return 500
	default:
		return 500
	}
}

// Error is the concrete error type propagated through the pipeline.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind, preserving cause for %w-style
// unwrapping, using github.com/pkg/errors for the stack-trace-carrying wrap
// the teacher's resilience package uses for the same purpose.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: errors.Wrap(cause, message)}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err is
// not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
