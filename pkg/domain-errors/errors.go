// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values; transports map Code to a status and render
// Message and Fields. Stores never construct these directly: they return
// sentinel errors (pkg/platform/sentinel) that services translate.
package domainerrors

import (
	"errors"
	"fmt"
	"maps"
)

// Code classifies a domain error independently of any transport.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeClosed             Code = "registration_closed"
	CodeCapacityExceeded   Code = "capacity_exceeded"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTooManyRequests    Code = "too_many_requests"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a coded error with optional per-field detail.
type Error struct {
	Code    Code
	Message string
	// Fields maps a request field path (e.g. "members[1].identifier") to a
	// client-correctable message.
	Fields map[string]string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Validation builds a validation error from field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "request validation failed", Fields: fields}
}

// WithField returns a copy of e carrying one more field message.
func (e *Error) WithField(field, message string) *Error {
	out := *e
	out.Fields = make(map[string]string, len(e.Fields)+1)
	maps.Copy(out.Fields, e.Fields)
	out.Fields[field] = message
	return &out
}

// As extracts the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err (or anything it wraps) is a domain error with code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// Is is an alias for HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field messages of the outermost domain error.
func FieldsOf(err error) map[string]string {
	if de, ok := As(err); ok {
		return de.Fields
	}
	return nil
}
