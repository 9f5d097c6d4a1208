// Package apperr is the error taxonomy shared by the service and HTTP layers.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error class.
type Code string

const (
	CodeValidation      Code = "validation"
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodePersistence     Code = "persistence"
	CodeInternal        Code = "internal"
)

// HTTPStatus maps a code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation reports a malformed top-level field.
func Validation(field, message string) *Error {
	return New(CodeValidation, field+": "+message)
}

func Unauthenticated(message string) *Error { return New(CodeUnauthenticated, message) }
func Forbidden(message string) *Error       { return New(CodeForbidden, message) }

func Persistence(message string, cause error) *Error {
	return Wrap(CodePersistence, message, cause)
}

// Sentinels for errors.Is checks.
var (
	ErrValidation      = New(CodeValidation, "validation")
	ErrUnauthenticated = New(CodeUnauthenticated, "unauthenticated")
	ErrForbidden       = New(CodeForbidden, "forbidden")
	ErrPersistence     = New(CodePersistence, "persistence")
)

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps any error to a response status; unknown errors are 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return CodeOf(err).HTTPStatus()
}

// Public returns the message that may be shown to the caller.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodePersistence || e.Code == CodeInternal {
			return "internal error"
		}
		return e.Message
	}
	return "internal error"
}
