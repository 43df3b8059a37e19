// Package schema validates fleet manager responses against JSON schemas.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed central_request_list.json
var centralRequestList string

var (
	centralsOnce   sync.Once
	centralsSchema *jsonschema.Schema
	centralsErr    error
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Compile compiles a JSON schema document.
func Compile(name, schemaStr string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return s, nil
}

// ValidateCentralRequestList checks a list centrals response body.
// A nil result means the body is valid.
func ValidateCentralRequestList(body []byte) ValidationErrors {
	centralsOnce.Do(func() {
		centralsSchema, centralsErr = Compile("central_request_list.json", centralRequestList)
	})
	if centralsErr != nil {
		return ValidationErrors{centralsErr}
	}
	return validate(centralsSchema, body)
}

// ValidateWithErrors validates a JSON string against a JSON Schema.
// Returns true if the JSON is valid, otherwise the list of violations.
func ValidateWithErrors(jsonStr, schemaStr string) (bool, ValidationErrors) {
	s, err := Compile("schema.json", schemaStr)
	if err != nil {
		return false, ValidationErrors{err}
	}

	errs := validate(s, []byte(jsonStr))
	return len(errs) == 0, errs
}

func validate(s *jsonschema.Schema, body []byte) ValidationErrors {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	if err := s.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return extractValidationErrors(validationErr)
		}
		return ValidationErrors{err}
	}
	return nil
}

// extractValidationErrors flattens the leaf causes of a ValidationError
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		return ValidationErrors{fmt.Errorf("validation error at %q: %s", err.InstanceLocation, err.Message)}
	}

	var errs ValidationErrors
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}
	return errs
}
