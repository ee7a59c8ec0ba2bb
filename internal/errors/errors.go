// Package errors provides coded domain errors for the Satin API.
//
// Services return typed errors; the API layer maps them to HTTP responses
// by code:
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    ...
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    status := domainErr.HTTPStatus()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeValidation       Code = "VALIDATION"
	CodeInvalidID        Code = "INVALID_ID"
	CodeConflict         Code = "CONFLICT"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia Code = "UNSUPPORTED_MEDIA"
	CodeTokenExpired     Code = "TOKEN_EXPIRED"
	CodeInternal         Code = "INTERNAL"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation, CodeInvalidID:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error

	// class marks the package sentinels that match any error of their code.
	class bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is the class sentinel for e's Code, so that
// errors.Is(err, ErrNotFound) holds for every not found error. Other *Error
// values only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.class && e.Code == t.Code
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GetStatus returns the HTTP status code. It lets huma treat domain errors
// as status errors.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found", class: true}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists, Message: "already exists", class: true}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized, Message: "unauthorized", class: true}
	ErrForbidden       = &Error{Code: CodeForbidden, Message: "forbidden", class: true}
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation error", class: true}
	ErrInvalidID       = &Error{Code: CodeInvalidID, Message: "invalid identifier", class: true}
	ErrConflict        = &Error{Code: CodeConflict, Message: "conflict", class: true}
	ErrRateLimited     = &Error{Code: CodeRateLimited, Message: "rate limit exceeded", class: true}
	ErrPayloadTooLarge = &Error{Code: CodePayloadTooLarge, Message: "payload too large", class: true}
	ErrUnsupported     = &Error{Code: CodeUnsupportedMedia, Message: "unsupported media type", class: true}
	ErrTokenExpired    = &Error{Code: CodeTokenExpired, Message: "token expired", class: true}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error", class: true}
)

func newf(code Code, format string, args ...any) *Error {
	if len(args) == 0 {
		return &Error{Code: code, Message: format}
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error { return newf(CodeNotFound, msg) }

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error { return newf(CodeNotFound, format, args...) }

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error { return newf(CodeAlreadyExists, msg) }

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error { return newf(CodeUnauthorized, msg) }

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error { return newf(CodeForbidden, msg) }

// Validation creates a validation error.
func Validation(msg string) *Error { return newf(CodeValidation, msg) }

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error { return newf(CodeValidation, format, args...) }

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidID creates an invalid identifier error.
func InvalidID(msg string) *Error { return newf(CodeInvalidID, msg) }

// Conflict creates a conflict error.
func Conflict(msg string) *Error { return newf(CodeConflict, msg) }

// Conflictf creates a conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error { return newf(CodeConflict, format, args...) }

// RateLimited creates a rate limit error.
func RateLimited(msg string) *Error { return newf(CodeRateLimited, msg) }

// PayloadTooLarge creates a payload too large error.
func PayloadTooLarge(msg string) *Error { return newf(CodePayloadTooLarge, msg) }

// UnsupportedMedia creates an unsupported media type error.
func UnsupportedMedia(msg string) *Error { return newf(CodeUnsupportedMedia, msg) }

// TokenExpired creates a token expired error.
func TokenExpired(msg string) *Error { return newf(CodeTokenExpired, msg) }

// Internal creates an internal error.
func Internal(msg string) *Error { return newf(CodeInternal, msg) }

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
