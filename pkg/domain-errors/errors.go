// Package domainerrors defines the error taxonomy surfaced to API callers.
//
// Services construct these from sentinel errors returned by stores and
// collaborators; the HTTP layer translates codes to status lines via
// ToHTTPStatus. Infrastructure facts (missing rows, expired keys) live in
// pkg/platform/sentinel and never cross the service boundary untranslated.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for API consumers.
type Code string

const (
	CodeValidation       Code = "validation_error"
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeCapacityExceeded Code = "capacity_exceeded"
	CodeDeadlinePassed   Code = "deadline_passed"
	CodeNotRegistered    Code = "not_registered"
	CodeWrongDay         Code = "wrong_day"
	CodeUpstream         Code = "upstream_failure"
	CodeInternal         Code = "internal_error"
)

// Error carries a stable code and a human-readable detail message.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a domain error with a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the chain.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.wrapped
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf extracts the outermost domain code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the outermost detail message, or a generic fallback.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}

// ToHTTPStatus maps a domain code to an HTTP status code.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeCapacityExceeded, CodeDeadlinePassed:
		return http.StatusConflict
	case CodeNotRegistered, CodeWrongDay:
		return http.StatusBadRequest
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
