package templates

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

// Params holds resolved template parameters.
type Params map[string]any

// String returns the parameter as a string, or "" when absent.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Number returns the parameter as a float64, or 0 when absent or not numeric.
func (p Params) Number(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()

		return f
	default:
		return 0
	}
}

// Int returns the parameter truncated to an int.
func (p Params) Int(key string) int {
	return int(p.Number(key))
}

// Strings returns an array parameter as strings.
func (p Params) Strings(key string) []string {
	raw, ok := p[key].([]any)
	if !ok {
		if typed, ok := p[key].([]string); ok {
			return typed
		}

		return nil
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, fmt.Sprint(item))
	}

	return out
}

// FieldError is a single parameter problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParameterError reports every parameter problem found for a template.
type ParameterError struct {
	Template string
	Fields   []FieldError
}

func (e *ParameterError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Field+": "+field.Message)
	}

	return fmt.Sprintf("invalid parameters for template %s: %s", e.Template, strings.Join(parts, "; "))
}

func (e *ParameterError) Unwrap() error {
	return ErrTemplateParameterInvalid
}

// resolveParams checks params against the template schema and fills defaults.
func resolveParams(template *Template, params map[string]any) (Params, error) {
	resolved := make(Params)
	if template.Schema != nil {
		maps.Copy(resolved, template.Schema.Defaults())
	}

	for key, value := range params {
		if value == nil {
			continue
		}

		resolved[key] = value
	}

	if template.Schema == nil {
		return resolved, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(template.Schema),
		gojsonschema.NewGoLoader(map[string]any(resolved)),
	)
	if err != nil {
		return nil, &ParameterError{
			Template: template.Name,
			Fields:   []FieldError{{Field: rootField, Message: err.Error()}},
		}
	}

	if !result.Valid() {
		fields := make([]FieldError, 0, len(result.Errors()))

		for _, desc := range result.Errors() {
			fields = append(fields, FieldError{
				Field:   fieldName(desc),
				Message: desc.Description(),
			})
		}

		return nil, &ParameterError{Template: template.Name, Fields: fields}
	}

	return resolved, nil
}

func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field != rootField {
		return field
	}

	if property, ok := desc.Details()["property"]; ok {
		return fmt.Sprint(property)
	}

	return field
}

// Schema helpers used by the built-in templates.

func objectSchema(title string, required []string, properties map[string]*models.Property) *models.JSONSchema {
	return &models.JSONSchema{
		Type:       "object",
		Title:      title,
		Properties: properties,
		Required:   required,
	}
}

func stringParam(description, def string) *models.Property {
	minLength := 1

	return &models.Property{
		Type:        "string",
		Description: description,
		Default:     def,
		MinLength:   &minLength,
	}
}

func enumParam(description, def string, values ...string) *models.Property {
	enum := make([]any, 0, len(values))
	for _, v := range values {
		enum = append(enum, v)
	}

	return &models.Property{
		Type:        "string",
		Description: description,
		Default:     def,
		Enum:        enum,
	}
}

func numberParam(description string, def float64) *models.Property {
	return &models.Property{
		Type:        "number",
		Description: description,
		Default:     def,
	}
}

func rangeParam(kind, description string, def, minimum, maximum float64) *models.Property {
	return &models.Property{
		Type:        kind,
		Description: description,
		Default:     def,
		Minimum:     &minimum,
		Maximum:     &maximum,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func requiredStringParam(description string) *models.Property {
	minLength := 1

	return &models.Property{
		Type:        "string",
		Description: description,
		MinLength:   &minLength,
	}
}
