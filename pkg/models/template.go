package models

// TemplateComplexity grades how much of the Agent Forge feature set a template uses.
type TemplateComplexity string

const (
	ComplexitySimple   TemplateComplexity = "simple"
	ComplexityMedium   TemplateComplexity = "medium"
	ComplexityAdvanced TemplateComplexity = "advanced"
)

// TemplateDescriptor describes a registered template and its parameters.
type TemplateDescriptor struct {
	Name            string             `json:"name"`
	DisplayName     string             `json:"display_name"`
	Description     string             `json:"description"`
	Category        string             `json:"category"`
	Complexity      TemplateComplexity `json:"complexity"`
	Tags            []string           `json:"tags"`
	ParameterSchema *JSONSchema        `json:"parameter_schema"`
}
