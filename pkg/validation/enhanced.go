package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/internal/core/message"
)

var (
	validate *validator.Validate

	nodeIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_\-.:]{1,100}$`)
	threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.:@]{1,128}$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	must(validate.RegisterValidation("node_id", validateNodeID))
	must(validate.RegisterValidation("thread_id", validateThreadID))
	must(validate.RegisterValidation("message_role", validateMessageRole))

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Engine exposes the shared validator so other packages (config loading)
// get the same custom tags.
func Engine() *validator.Validate {
	return validate
}

// formatValidationErrors converts validator errors to our custom format.
// It returns nil when err is not a validator.ValidationErrors.
func formatValidationErrors(err error) ValidationErrors {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return nil
	}

	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// getErrorMessage returns a human-readable error message
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min", "gte":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	case "node_id":
		return "must be a valid node identifier (letters, digits, _ - . :) and not a reserved name"
	case "thread_id":
		return "must be a valid thread identifier (letters, digits, _ - . : @, at most 128)"
	case "message_role":
		return "must be a valid message role (human, ai, system, tool)"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

// validateNodeID accepts identifiers that AddNode would accept.
func validateNodeID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return nodeIDPattern.MatchString(id) && !graph.IsSentinel(id)
}

func validateThreadID(fl validator.FieldLevel) bool {
	return threadIDPattern.MatchString(fl.Field().String())
}

func validateMessageRole(fl validator.FieldLevel) bool {
	role, err := message.ParseRole(fl.Field().String())
	return err == nil && role != message.RoleRemove
}
