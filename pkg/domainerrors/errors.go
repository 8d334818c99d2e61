// Package domainerrors provides a small typed error taxonomy shared by every
// service and surfaced to HTTP transport through ToHTTPStatus, so every
// handler reports errors identically instead of hand-rolling status codes.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code enumerates the error taxonomy from spec §7.
type Code string

const (
	CodeInvalid       Code = "config_invalid"
	CodeInvalidRunID  Code = "invalid_run_id"
	CodeBadRequest    Code = "bad_request"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "invalid_transition"
	CodeUnprocessable Code = "unprocessable"
	CodeInternal      Code = "persistence_error"
)

// Error is the concrete error type carried across package boundaries.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether the first *Error found in err's chain carries the
// given code; codes on *Error values wrapped further down are not checked.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a Code to the HTTP status spec §7 requires.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRunID, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case CodeInvalid, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
