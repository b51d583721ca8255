// Package apierror defines the closed error taxonomy surfaced by resource
// handlers. Every error that crosses a handler boundary is an *Error carrying
// an HTTP-style status code and a machine-readable code; callers classify by
// code, never by message content.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a short machine-readable error tag.
type Code string

const (
	CodeInvalidParameters     Code = "invalid_parameters"
	CodeInvalidParameterFmt   Code = "invalid_parameter_format"
	CodeResourceNotFound      Code = "resource_not_found"
	CodeInvalidResponseFormat Code = "invalid_response_format"
	CodeValidationError       Code = "validation_error"
	CodeNetworkError          Code = "network_error"
	CodeRequestTimeout        Code = "request_timeout"
	CodeRequestAborted        Code = "request_aborted"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeServerError           Code = "server_error"
	CodeUnknownError          Code = "unknown_error"
)

// StatusClientClosedRequest is the nginx-style status used when the caller
// cancels the request before the backend call completes.
const StatusClientClosedRequest = 499

// Error is the typed error carried across the handler boundary.
type Error struct {
	Message    string
	StatusCode int
	Code       Code
	Details    map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
}

// New creates a typed error with the given status, code and message.
func New(status int, code Code, message string) *Error {
	return &Error{Message: message, StatusCode: status, Code: code}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(status int, code Code, format string, args ...any) *Error {
	return New(status, code, fmt.Sprintf(format, args...))
}

// WithDetails attaches structured diagnostics and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// FromStatus maps an explicit upstream HTTP status to a typed error. Known
// statuses get their canonical codes; anything else falls back to a 500
// unknown_error so unexpected upstream behavior stays classifiable.
func FromStatus(status int, message string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return New(status, CodeUnauthorized, message)
	case http.StatusForbidden:
		return New(status, CodeForbidden, message)
	case http.StatusNotFound:
		return New(status, CodeResourceNotFound, message)
	case http.StatusInternalServerError:
		return New(status, CodeServerError, message)
	default:
		if status >= 400 {
			return New(status, CodeUnknownError, message)
		}
		return New(http.StatusInternalServerError, CodeUnknownError, message)
	}
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err is a typed error with the given code.
func HasCode(err error, code Code) bool {
	if apiErr, ok := As(err); ok {
		return apiErr.Code == code
	}
	return false
}

// Ensure ensures every error surfaced to a caller is typed: a non-typed err is
// wrapped as a 500 unknown_error.
func Ensure(err error) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	return New(http.StatusInternalServerError, CodeUnknownError, err.Error())
}
