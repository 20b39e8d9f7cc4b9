package validation

import (
	"fmt"
	"sort"
	"strings"

	"loan-intake/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// FieldErrors converts the result for the API envelope.
func (r *ValidationResult) FieldErrors() []errors.FieldError {
	out := make([]errors.FieldError, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, errors.FieldError{Field: e.Field, Message: e.Message})
	}
	return out
}

// Validator checks wizard sections against compiled JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the built-in section schemas.
func NewValidator() (*Validator, error) {
	return NewValidatorFromSchemas(sectionSchemas)
}

// NewValidatorFromSchemas compiles schemas keyed by section name.
func NewValidatorFromSchemas(raw map[string]string) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(raw))}
	for section, src := range raw {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", section, err)
		}
		v.schemas[section] = schema
	}
	return v, nil
}

// Sections lists the sections that have a schema.
func (v *Validator) Sections() []string {
	out := make([]string, 0, len(v.schemas))
	for s := range v.schemas {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ValidateSection validates data for one section. Unknown sections are an error.
func (v *Validator) ValidateSection(section string, data map[string]interface{}) (*ValidationResult, error) {
	schema, ok := v.schemas[section]
	if !ok {
		return nil, errors.NewInvalidSectionError(section)
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	res := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		// if/then branches report an extra summary error alongside the real one
		if desc.Type() == "condition_then" || desc.Type() == "condition_else" {
			continue
		}
		res.Errors = append(res.Errors, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Field < res.Errors[j].Field })
	return res, nil
}

func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == gojsonschema.STRING_CONTEXT_ROOT {
		field = ""
	}
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if field == "" {
				return prop
			}
			return field + "." + prop
		}
	}
	return strings.TrimPrefix(field, gojsonschema.STRING_CONTEXT_ROOT+".")
}
