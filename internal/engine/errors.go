package engine

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a misconfigured editor detected while starting
// an engine. It is fatal to that engine instance and will not heal on retry.
type ConfigurationError struct {
	// Code identifies the error category.
	Code ConfigurationErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the browse path of the offending variable, if any.
	Path string
}

// ConfigurationErrorCode categorizes configuration errors.
type ConfigurationErrorCode string

const (
	// ErrCodeMissingVariable indicates the array path resolves to nothing.
	ErrCodeMissingVariable ConfigurationErrorCode = "MISSING_VARIABLE"

	// ErrCodeNotAnArray indicates the variable holds a scalar.
	ErrCodeNotAnArray ConfigurationErrorCode = "NOT_AN_ARRAY"

	// ErrCodeUnsupportedRank indicates an array whose rank is not 1.
	ErrCodeUnsupportedRank ConfigurationErrorCode = "UNSUPPORTED_RANK"

	// ErrCodeUnsupportedType indicates an element kind with no cell type.
	ErrCodeUnsupportedType ConfigurationErrorCode = "UNSUPPORTED_TYPE"

	// ErrCodeMissingGridSlot indicates the grid slot path resolves to nothing.
	ErrCodeMissingGridSlot ConfigurationErrorCode = "MISSING_GRID_SLOT"

	// ErrCodeInvalidGridSlot indicates the grid slot cannot hold a node reference.
	ErrCodeInvalidGridSlot ConfigurationErrorCode = "INVALID_GRID_SLOT"

	// ErrCodeAlreadyStarted indicates Start was called on a running engine.
	ErrCodeAlreadyStarted ConfigurationErrorCode = "ALREADY_STARTED"
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ConfigurationCode returns the code of a wrapped ConfigurationError, or ""
// if err is not one.
func ConfigurationCode(err error) ConfigurationErrorCode {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func configError(code ConfigurationErrorCode, path, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}

// ShapeError reports a notification whose index does not address an
// existing row, typically one that raced with a rebuild. It is logged and
// the event is skipped; it never stops the engine.
type ShapeError struct {
	Index int
	Rows  int
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("index %d does not address a row (rows=%d)", e.Index, e.Rows)
}

// IsShapeError returns true if err is or wraps a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
