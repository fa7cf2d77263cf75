// Package apperr defines the stable, numeric error taxonomy shared by every
// component of the auth core. Codes are grouped by thousands so RPC
// consumers can treat a whole range consistently even for codes added later.
package apperr

import "fmt"

// Code is a stable numeric error identifier. Values must never be renumbered
// once shipped, since clients persist them.
type Code int

const (
	// System (100-range)
	Unknown            Code = 100
	Internal           Code = 101
	NotImplemented     Code = 102
	ServiceUnavailable Code = 103
	Timeout            Code = 104

	// Input (200-range)
	InvalidArgument Code = 200
	InvalidPage     Code = 210
	InvalidPageSize Code = 211

	// Rate (300-range)
	RateLimited   Code = 300
	QuotaExceeded Code = 301

	// Auth (1000-range)
	Unauthenticated Code = 1000
	TokenMissing    Code = 1001
	TokenInvalid    Code = 1002
	TokenExpired    Code = 1003
	TokenRevoked    Code = 1004
	LoginFailed     Code = 1010
	WrongPassword   Code = 1011
	AccountLocked   Code = 1012
	CaptchaWrong    Code = 1021
	CaptchaExpired  Code = 1022

	// User (2000-range)
	UserNotFound      Code = 2000
	UserDeleted       Code = 2001
	UserAlreadyExists Code = 2010
	MobileTaken       Code = 2013
	UserDisabled      Code = 2020
	UserNotVerified   Code = 2021

	// Permission (3000-range)
	PermissionDenied Code = 3000
	AdminRequired    Code = 3001
	OwnerRequired    Code = 3002
)

// FieldError attaches a validation failure to a specific input field.
type FieldError struct {
	Field string
	Msg   string
}

// Error is the error type every component returns at its public boundary.
// It carries a stable code, a human-readable message, and optional
// per-field validation detail: the in-process shape of the response
// envelope (code, msg, field_errors).
type Error struct {
	Code        Code
	Msg         string
	FieldErrors []FieldError
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Msg)
}

// New builds an *Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf builds an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Field builds an InvalidArgument error naming the offending field.
func Field(field, msg string) *Error {
	return &Error{
		Code:        InvalidArgument,
		Msg:         msg,
		FieldErrors: []FieldError{{Field: field, Msg: msg}},
	}
}

// As extracts an *Error from err, or reports ok=false if err is not one.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	e, ok := err.(*Error)
	return e, ok
}

// CodeOf returns the stable code carried by err, or Internal if err is
// not an *Error, so generic underlying errors normalise to something
// callers can treat uniformly.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return Internal
}
