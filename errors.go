package studio

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for studio operations.
const (
	// Lookup errors
	ErrCodeUnknownEndpoint Code = "UNKNOWN_ENDPOINT"
	ErrCodeUnknownLayer    Code = "UNKNOWN_LAYER"
	ErrCodeUnknownPreset   Code = "UNKNOWN_PRESET"

	// Routing errors
	ErrCodeSelfLoop Code = "SELF_LOOP"

	// Resource errors
	ErrCodeResourceUnavailable Code = "RESOURCE_UNAVAILABLE"
	ErrCodeTeardownFault       Code = "TEARDOWN_FAULT"

	// Placement errors
	ErrCodeGeometryFault Code = "GEOMETRY_FAULT"
	ErrCodeGestureActive Code = "GESTURE_ACTIVE"
	ErrCodeNoGesture     Code = "NO_GESTURE"

	// Input errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
)

// Sentinels for errors.Is comparisons. An *Error matches the sentinel
// carrying the same code.
var (
	ErrUnknownEndpoint     = &Error{Code: ErrCodeUnknownEndpoint, Message: "unknown endpoint"}
	ErrUnknownLayer        = &Error{Code: ErrCodeUnknownLayer, Message: "unknown layer"}
	ErrUnknownPreset       = &Error{Code: ErrCodeUnknownPreset, Message: "unknown preset"}
	ErrSelfLoop            = &Error{Code: ErrCodeSelfLoop, Message: "connection from an endpoint to itself"}
	ErrResourceUnavailable = &Error{Code: ErrCodeResourceUnavailable, Message: "resource unavailable"}
	ErrTeardownFault       = &Error{Code: ErrCodeTeardownFault, Message: "teardown fault"}
	ErrGeometryFault       = &Error{Code: ErrCodeGeometryFault, Message: "geometry fault"}
	ErrGestureActive       = &Error{Code: ErrCodeGestureActive, Message: "a gesture is already active"}
	ErrNoGesture           = &Error{Code: ErrCodeNoGesture, Message: "no active gesture"}
	ErrInvalidConfig       = &Error{Code: ErrCodeInvalidConfig, Message: "invalid configuration"}
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates a new Error wrapping an existing error.
func WrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsCode reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
