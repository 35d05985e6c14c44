package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors so callers can branch on the class of
// failure without string matching.
type ErrorKind string

const (
	KindInvalidInput           ErrorKind = "INVALID_INPUT"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindPolicyViolation        ErrorKind = "POLICY_VIOLATION"
	KindDependencyUnavailable  ErrorKind = "DEPENDENCY_UNAVAILABLE"
	KindTimeout                ErrorKind = "TIMEOUT"
)

// Error is the engine's typed error. PolicyViolation is a business decision,
// not a request failure; it is still modeled as an error so rejected
// transitions and blocked operations share one propagation path.
type Error struct {
	Kind    ErrorKind
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches two engine errors by kind, so errors.Is(err, ErrNotFound)
// works with the sentinel values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is matching.
var (
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrPolicyViolation        = &Error{Kind: KindPolicyViolation}
	ErrDependencyUnavailable  = &Error{Kind: KindDependencyUnavailable}
	ErrTimeout                = &Error{Kind: KindTimeout}
)

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// KindOf returns the error kind, or empty string for non-engine errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
