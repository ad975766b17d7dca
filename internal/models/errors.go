package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a report id does not exist.
	ErrNotFound = errors.New("report not found")
	// ErrClassificationFailed is returned by classifiers that cannot produce a result.
	ErrClassificationFailed = errors.New("classification failed")
	// ErrInvalidTransition is returned when a status update would move a report backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("not authorized")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
