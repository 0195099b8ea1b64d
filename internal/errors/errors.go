// Package errors provides error kind definitions for the library engine.
package errors

import "fmt"

// Kind represents a machine-checkable error classification.
type Kind string

const (
	// General errors
	ErrInternal Kind = "INTERNAL_ERROR"
	ErrDatabase Kind = "DATABASE_ERROR"

	// Authorization errors
	ErrNotAuthorized Kind = "NOT_AUTHORIZED"

	// Lookup errors
	ErrNotFound        Kind = "NOT_FOUND"
	ErrItemNotFound    Kind = "ITEM_NOT_FOUND"
	ErrProjectNotFound Kind = "PROJECT_NOT_FOUND"

	// Query errors
	ErrInvalidQuery   Kind = "INVALID_QUERY"
	ErrInvalidField   Kind = "INVALID_FIELD"
	ErrInvalidGlue    Kind = "INVALID_GLUE"
	ErrInvalidSortKey Kind = "INVALID_SORT_KEY"
	ErrInvalidDisplay Kind = "INVALID_DISPLAY"
)

// AppError represents an application error with kind and message.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to an HTTP-style status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case ErrNotAuthorized:
		return 403
	case ErrNotFound, ErrItemNotFound, ErrProjectNotFound:
		return 404
	case ErrInvalidQuery, ErrInvalidField, ErrInvalidGlue, ErrInvalidSortKey, ErrInvalidDisplay:
		return 422
	default:
		return 500
	}
}

// New creates a new AppError.
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with an error kind.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific kind.
func Is(err error, kind Kind) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Kind == kind
	}
	return false
}

// IsQueryError reports whether the error is any of the query validation kinds.
func IsQueryError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Kind {
	case ErrInvalidQuery, ErrInvalidField, ErrInvalidGlue, ErrInvalidSortKey, ErrInvalidDisplay:
		return true
	}
	return false
}
