// Package validation defines the error taxonomy shared by the protocol
// aggregation pipeline. Two error classes are distinguished:
//
// ConfigurationError reports a malformed or inconsistent setup: a ragged
// study structure, a level-name list that does not match the nesting depth
// of the data, or missing pipeline parameters.
//
// ValidationError reports data that fails a documented shape contract: a
// wrong table schema, a subject missing from a condition map, or a
// sample-time count that does not match the raw data.
//
// Both error types carry the identifying key (phase name, subject id,
// saliva type) that triggered them and support errors.Cause unwrapping.
package validation

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError indicates a malformed or inconsistent configuration.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string {
	return e.msg
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{msg: fmt.Sprintf(format, args...)})
}

// IsConfigurationError checks whether the cause of err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigurationError)
	return ok
}

// ValidationError indicates data which violates a documented shape or type
// contract.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{msg: fmt.Sprintf(format, args...)})
}

// IsValidationError checks whether the cause of err is a ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}
