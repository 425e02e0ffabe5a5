package errors

import (
	"errors"
	"fmt"
)

// AppError provides a structured error carrying a stable machine-readable code.
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Is matches AppErrors by code so sentinel comparisons survive WithInternal copies.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// Common errors exposed to the rest of the application.
var (
	ErrNotFound = &AppError{
		Code:    "NOT_FOUND",
		Message: "Resource not found",
	}

	// ErrDedupIndexUnavailable aborts a reminder run: without the index of
	// already-sent reminders the engine cannot guarantee it will not notify twice.
	ErrDedupIndexUnavailable = &AppError{
		Code:    "DEDUP_INDEX_UNAVAILABLE",
		Message: "Existing reminder notifications could not be loaded",
	}

	ErrInvalidInput = &AppError{
		Code:    "INVALID_INPUT",
		Message: "Invalid input",
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:     "INTERNAL",
		Message:  message,
		Internal: err,
	}
}
