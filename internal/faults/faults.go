// Package faults classifies job-processing errors for the queue consumer's
// acknowledgement decision. A fatal error means redelivery cannot succeed
// (malformed archive, missing geometry file, unknown upload row): the job is
// marked failed and the message is deleted. Everything else is transient and
// the message is left to reappear when its visibility lease expires.
package faults

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fatalError marks an error as non-retryable for queue acknowledgement.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal wraps err so IsFatal reports true. Wrapping nil returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// Fatalf formats a new fatal error.
func Fatalf(format string, args ...interface{}) error {
	return &fatalError{err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether any error in the chain was marked fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// FormatValidationErrors converts validator errors on a queue payload into a
// single human-readable message suitable for the upload error_message column.
func FormatValidationErrors(validationErrors validator.ValidationErrors) string {
	parts := make([]string, 0, len(validationErrors))
	for _, err := range validationErrors {
		parts = append(parts, err.Field()+": "+formatValidationError(err))
	}
	return strings.Join(parts, "; ")
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "value is too long or large (maximum: " + err.Param() + ")"
	case "oneof":
		return "must be one of: " + err.Param()
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	default:
		return "validation failed for tag: " + err.Tag()
	}
}
