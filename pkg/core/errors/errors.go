// File: errors.go
// Title: Coded Errors
// Description: Error type carrying a machine-readable code, a user-facing message,
//              an optional cause and free-form details. Codes drive HTTP status
//              mapping and user-visible warnings in the presentation adapters.
// Author: Mike Stoffels
// Version: v0.1.0
// Created: 2026-10-19
// Modified: 2026-10-19
//
// Change History:
// - 2026-10-19 v0.1.0: Initial implementation

package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Code represents a structured error code for categorizing errors
type Code string

// Generic codes
const (
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTimeout      Code = "TIMEOUT"

	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
)

// Error represents a structured error with code and metadata
type Error struct {
	code      Code
	message   string
	cause     error
	details   map[string]interface{}
	timestamp time.Time
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		code:      code,
		message:   message,
		timestamp: time.Now(),
	}
}

// Newf creates a new error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a code and message. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.cause = err
	return e
}

// Error implements the standard error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
// This makes sentinel values like ErrValidation usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}

// WithDetail adds a key/value detail and returns the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Code returns the error code
func (e *Error) Code() Code {
	return e.code
}

// Message returns the message without the cause chain, suitable for end users
func (e *Error) Message() string {
	return e.message
}

// Details returns a copy of the details
func (e *Error) Details() map[string]interface{} {
	out := make(map[string]interface{}, len(e.details))
	for k, v := range e.details {
		out[k] = v
	}
	return out
}

// Timestamp returns when the error was created
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

// HasCode checks if any error in err's chain carries code
func HasCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// UserMessage returns the message of the first *Error in the chain, or err.Error()
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.message
	}
	return err.Error()
}
