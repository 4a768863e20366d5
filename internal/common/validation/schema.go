// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for one worker's job variables.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Compile parses a JSON schema document.
func Compile(name, schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// ValidateJSON validates raw job variables.
func (s *Schema) ValidateJSON(variables string) (*ValidationResult, error) {
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}
	result, err := s.schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}
	return toResult(result), nil
}

// Validate validates an already decoded value.
func (s *Schema) Validate(value interface{}) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}
	return toResult(result), nil
}

func toResult(result *gojsonschema.Result) *ValidationResult {
	vr := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		vr.Errors = append(vr.Errors, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return vr
}

// fieldName reports the missing property itself for "required" errors,
// which gojsonschema attaches to the parent.
func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if field == prop || strings.HasSuffix(field, "."+prop) {
				return field
			}
			if field == "(root)" {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}

// Error joins the messages so the result can travel as an error detail.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizePhone strips formatting so the number can be handed to SMS
// delivery in E.164 form. Numbers without a country code get defaultPrefix.
func NormalizePhone(phone, defaultPrefix string) (string, bool) {
	if !ValidatePhone(phone) {
		return "", false
	}
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if !strings.HasPrefix(out, "+") {
		out = defaultPrefix + strings.TrimLeft(out, "0")
	}
	return out, true
}
