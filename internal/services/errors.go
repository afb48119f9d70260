package services

import (
	"errors"
	"fmt"
)

var (
	// ErrBookNotFound is returned when the referenced book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrValidation is wrapped by every ValidationError so callers can match
	// the whole class with errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes caller-supplied data that would break a book
// invariant. It is always detected before anything is written.
type ValidationError struct {
	Field   string
	Message string

	// TotalPages carries the bound that was exceeded, when there is one.
	TotalPages int
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func pageExceedsTotal(field string, page, totalPages int) *ValidationError {
	return &ValidationError{
		Field:      field,
		Message:    fmt.Sprintf("%s %d exceeds total pages (%d)", field, page, totalPages),
		TotalPages: totalPages,
	}
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
