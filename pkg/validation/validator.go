// Package validation checks graphs, run configuration and API requests.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validator interface for custom validation
// PRINCIPLES:
// - ISP: Simple interface with single method
// - DIP: Depend on interface, not concrete types
type Validator interface {
	Validate() error
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrValidation) match any ValidationErrors.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ValidateStruct runs the tag rules of v and then, if v implements
// Validator, its own Validate method.
// PRINCIPLES:
// - KISS: Simple validation based on struct tags
// - DRY: Reusable for all structs
func ValidateStruct(v interface{}) error {
	return ValidateWithConfig(v, nil)
}

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	MaxErrors int `json:"max_errors"`
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{MaxErrors: 10}
}

// ValidateWithConfig validates with specific configuration
func ValidateWithConfig(v interface{}, config *ValidationConfig) error {
	if config == nil {
		config = DefaultValidationConfig()
	}

	if err := validate.Struct(v); err != nil {
		errs := formatValidationErrors(err)
		if errs == nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if config.MaxErrors > 0 && len(errs) > config.MaxErrors {
			errs = errs[:config.MaxErrors]
		}
		return errs
	}

	if custom, ok := v.(Validator); ok {
		if err := custom.Validate(); err != nil {
			var errs ValidationErrors
			if errors.As(err, &errs) {
				return errs
			}
			return ValidationErrors{{Field: "", Message: err.Error()}}
		}
	}
	return nil
}

type errorResponse struct {
	Errors []ValidationError `json:"errors"`
	Count  int               `json:"count"`
}

// MarshalValidationErrors marshals validation errors to JSON
func MarshalValidationErrors(errs ValidationErrors) ([]byte, error) {
	return json.Marshal(errorResponse{Errors: errs, Count: len(errs)})
}

// UnmarshalValidationErrors unmarshals validation errors from JSON
func UnmarshalValidationErrors(data []byte) (ValidationErrors, error) {
	var response errorResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	return ValidationErrors(response.Errors), nil
}
