package domain

import (
	"errors"
	"fmt"
)

// Error codes. Handlers map them onto HTTP statuses; everything else only
// compares them.
const (
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized" // session missing or rejected by the record store
	EFORBIDDEN    = "forbidden"
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict" // e.g. an adjustment already settled
	ERATELIMIT    = "rate_limit"
	EPAYMENT      = "payment"     // billing provider refused the operation
	EUNAVAILABLE  = "unavailable" // record store or billing provider unreachable
	EINTERNAL     = "internal"
	ENOTIMPL      = "not_impl" // feature not configured
)

// internalMessage is shown instead of the message of EINTERNAL errors and
// of errors that carry no code at all.
const internalMessage = "An internal error occurred. Please try again later."

// Error is the error type returned across package boundaries. Message is
// safe to show to API clients; Err is for logs only.
type Error struct {
	Code    string
	Op      string // e.g. "service.preview_change"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Errorf builds an Error with a formatted message and no cause.
func Errorf(code, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches a code, operation and client-facing message to err.
func Wrap(err error, code, op, message string) *Error {
	return newError(code, op, message, err)
}

func NotFound(op, resource, id string) *Error {
	return newError(ENOTFOUND, op, fmt.Sprintf("%s with ID %q not found", resource, id), nil)
}

func Invalid(op, message string) *Error      { return newError(EINVALID, op, message, nil) }
func Unauthorized(op, message string) *Error { return newError(EUNAUTHORIZED, op, message, nil) }
func Forbidden(op, message string) *Error    { return newError(EFORBIDDEN, op, message, nil) }
func Conflict(op, message string) *Error     { return newError(ECONFLICT, op, message, nil) }

func Unavailable(err error, op, message string) *Error {
	return newError(EUNAVAILABLE, op, message, err)
}

func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

func RateLimit(op string) *Error {
	return newError(ERATELIMIT, op, "Too many requests. Please try again later.", nil)
}

// asError finds the outermost *Error in err's chain.
func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns the code of the outermost *Error in err's chain.
// Errors without one are internal. A nil error has no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the client-facing message for err. Internal
// details never leak through it.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}
