package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engine can surface to a caller.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation" // schema/path mismatch, bad parameter
	KindAuth       ErrorKind = "auth"       // missing or invalid credential
	KindConflict   ErrorKind = "conflict"   // route collision, uniqueness violation
	KindNotFound   ErrorKind = "not_found"  // unknown id
	KindConnection ErrorKind = "connection" // connector unreachable, pool exhausted
	KindExecution  ErrorKind = "execution"  // backend rejected the statement
)

// Error carries a kind and a human-readable message past every boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func AuthError(format string, args ...any) *Error {
	return newError(KindAuth, format, args...)
}

func ConflictError(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func NotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func ConnectionError(err error, format string, args ...any) *Error {
	return wrapError(KindConnection, err, format, args...)
}

func ExecutionError(err error, format string, args ...any) *Error {
	return wrapError(KindExecution, err, format, args...)
}

// KindOf extracts the error kind, defaulting to execution for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
