// Package errors provides structured error types for the pcbpeek application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages for the `detail` response field
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes split into two severities. Per-file codes (PARSE_*, GEOMETRY_*,
// RASTER_LIMIT, ...) mark a single archive member as failed without
// aborting the batch. Batch-fatal codes (ARCHIVE_ERROR,
// NO_RENDERABLE_LAYERS) abort the whole conversion.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUndefinedAperture, "D%d selected before definition", num)
//	if errors.Is(err, errors.ErrCodeUndefinedAperture) {
//	    // Handle per-file parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeArchive, origErr, "read zip member %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Archive errors (batch-fatal)
	ErrCodeArchive            Code = "ARCHIVE_ERROR"
	ErrCodeNoRenderableLayers Code = "NO_RENDERABLE_LAYERS"

	// Parse errors (per-file, recoverable)
	ErrCodeParse              Code = "PARSE_ERROR"
	ErrCodeMalformedCommand   Code = "MALFORMED_COMMAND"
	ErrCodeUndefinedAperture  Code = "UNDEFINED_APERTURE"
	ErrCodeFormatNotSet       Code = "FORMAT_NOT_SET"
	ErrCodeUnitNotSet         Code = "UNIT_NOT_SET"
	ErrCodeUnsupportedMacro   Code = "UNSUPPORTED_MACRO"

	// Geometry errors (per-file, recoverable)
	ErrCodeGeometry           Code = "GEOMETRY_ERROR"
	ErrCodeInvalidArc         Code = "INVALID_ARC"
	ErrCodeUnterminatedRegion Code = "UNTERMINATED_REGION"

	// Resource limit errors (per-file, recoverable)
	ErrCodeRasterLimit Code = "RASTER_LIMIT"

	// Boundary errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
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

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// BatchFatal reports whether the error aborts the whole conversion
// rather than a single archive member.
func BatchFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeArchive, ErrCodeNoRenderableLayers, ErrCodeInvalidInput:
		return true
	}
	return false
}
