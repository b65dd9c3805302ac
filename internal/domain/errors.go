package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input that is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFoundOrForbidden covers both a missing entity and one the caller may not
	// touch. The two cases are never distinguished so task existence does not leak.
	ErrNotFoundOrForbidden = errors.New("not found or forbidden")
)

// ValidationError carries a user-facing message and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
