// Package apperror defines the application's error taxonomy.
//
// Every failure the snippet engine can report maps to one sentinel error.
// Callers match with errors.Is (for the category) or errors.As (to read the
// human-readable Message), so the service layer never needs to know which
// host (HTTP, CLI, terminal palette) will display the error.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrStoreRead         = errors.New("store read failure")
	ErrStoreWrite        = errors.New("store write failure")
	ErrMalformedData     = errors.New("malformed persisted data")
	ErrClipboard         = errors.New("clipboard failure")
	ErrUnauthorized      = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error from a collaborator
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// SourceUnavailable reports that the external snippet list could not be fetched or decoded.
func SourceUnavailable(origin string, cause error) *AppError {
	return &AppError{
		Err:     ErrSourceUnavailable,
		Message: fmt.Sprintf("snippet source %s unavailable", origin),
		Cause:   cause,
	}
}

func StoreReadFailed(key string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreRead,
		Message: fmt.Sprintf("reading %s", key),
		Cause:   cause,
	}
}

func StoreWriteFailed(key string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreWrite,
		Message: fmt.Sprintf("writing %s", key),
		Cause:   cause,
	}
}

// MalformedData reports a stored value that is not valid JSON or has the wrong shape.
// It is recovered locally and never returned to a host as a fatal error.
func MalformedData(key string, cause error) *AppError {
	return &AppError{
		Err:     ErrMalformedData,
		Message: fmt.Sprintf("stored value under %s is malformed", key),
		Cause:   cause,
	}
}

func ClipboardFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrClipboard,
		Message: "copy to clipboard failed",
		Cause:   cause,
	}
}

// Unauthorized returns an AppError indicating the caller presented no valid token.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
