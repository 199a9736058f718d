package event

import (
	"errors"
	"fmt"
)

// ValidationError reports a candidate event that is missing a field its kind
// requires, or carries a value outside the allowed range.
type ValidationError struct {
	// Kind is the candidate's kind as received (possibly unknown).
	Kind Kind

	// Field names the offending field.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s event: %s: %s", e.Kind, e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func missing(k Kind, field string) *ValidationError {
	return &ValidationError{Kind: k, Field: field, Message: "required field missing"}
}
