// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors. Neither is retried: both describe a valid negative answer.
	ErrNoData   = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrNotFound = &Error{Code: "NOT_FOUND", Message: "requested item not found"}

	// Upstream errors
	ErrUpstreamFailed  = &Error{Code: "UPSTREAM_FAILED", Message: "upstream provider failed"}
	ErrUpstreamTimeout = &Error{Code: "UPSTREAM_TIMEOUT", Message: "upstream provider timeout"}
	ErrMalformedRow    = &Error{Code: "MALFORMED_ROW", Message: "upstream row is malformed"}

	// Cache errors
	ErrCacheFailure = &Error{Code: "CACHE_FAILURE", Message: "cache store failure"}

	// Request errors
	ErrInvalidArgument = &Error{Code: "INVALID_ARGUMENT", Message: "invalid argument"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
