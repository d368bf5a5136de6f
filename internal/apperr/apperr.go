// Package apperr defines the typed result errors shared by the engine and
// the HTTP layer. Handlers are the only place a Code turns into a status.
package apperr

import "fmt"

// Code is one of the taxonomy entries the engine may return.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a typed, wire-friendly error carrying a taxonomy code and a
// short human-readable reason.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func BadRequest(reason string) *Error   { return New(CodeBadRequest, reason) }
func Forbidden(reason string) *Error    { return New(CodeForbidden, reason) }
func NotFound(reason string) *Error     { return New(CodeNotFound, reason) }
func Conflict(reason string) *Error     { return New(CodeConflict, reason) }
func Timeout(reason string) *Error      { return New(CodeTimeout, reason) }
func Internal(reason string) *Error     { return New(CodeInternal, reason) }
func Unauthorized(reason string) *Error { return New(CodeUnauthorized, reason) }

// As extracts an *Error from err, returning (nil, false) for anything else.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
