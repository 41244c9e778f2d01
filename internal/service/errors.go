package service

import (
	"errors"
)

// Kinds. Every error returned by AuthService wraps exactly one of these.
var (
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
	ErrMisconfigured   = errors.New("auth config invalid")
)

// Error is a flow failure with a message that is safe to show the caller.
// Err holds the underlying cause, if any, and is never shown.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func conflict(message string) *Error     { return newError(ErrConflict, message, nil) }
func unauthorized(message string) *Error { return newError(ErrUnauthorized, message, nil) }
func notFound(message string) *Error     { return newError(ErrNotFound, message, nil) }
func tooManyRequests(message string) *Error {
	return newError(ErrTooManyRequests, message, nil)
}
func internal(message string, cause error) *Error { return newError(ErrInternal, message, cause) }

// KindOf returns the kind of err. Errors that do not carry a kind are
// internal.
func KindOf(err error) error {
	for _, kind := range []error{ErrConflict, ErrUnauthorized, ErrNotFound, ErrTooManyRequests, ErrMisconfigured} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// PublicMessage returns the caller-facing message of err.
func PublicMessage(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return "Internal server error"
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case ErrConflict:
		return "conflict"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrNotFound:
		return "not_found"
	case ErrTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}
