package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	// ErrConfiguration means required credentials or settings are missing.
	// Fatal: the pipeline must not start.
	ErrConfiguration = errors.New("configuration error")

	// ErrSchemaMismatch means an extraction response did not match the form
	// schema's key set. The whole call is rejected; no partial record is kept.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrParse means an extraction response body was not valid JSON.
	ErrParse = errors.New("malformed response")

	// ErrUnsupportedDocument means the requested page does not exist or the
	// file format is not accepted.
	ErrUnsupportedDocument = errors.New("unsupported document")

	// ErrAlreadyProcessing means a pipeline run is already in flight for the
	// document. Callers must not retry blindly.
	ErrAlreadyProcessing = errors.New("document already processing")

	ErrNotFound = errors.New("resource not found")
	ErrDatabase = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
