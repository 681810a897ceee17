package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork wraps every failed document store call.
	ErrNetwork = errors.New("network failure")
	// ErrNotFound is returned by lookups that find no task, subtask or contact.
	// Repository mutations treat a missing target as a silent no-op instead.
	ErrNotFound = errors.New("not found")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a required field that is missing or malformed at
// the point of task or contact creation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func networkError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}
