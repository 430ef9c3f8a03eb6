// Package validation runs the ordered validator chain over Agent Forge workflow states.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/forgestate/pkg/models"
)

// Validator names as they appear in a report.
const (
	SchemaValidatorName      = "schema"
	ReferentialValidatorName = "referential"
	StructuralValidatorName  = "structural"
	ComplianceValidatorName  = "agent_forge_compliance"
	StylisticValidatorName   = "stylistic"
)

const reviewWarningsThreshold = 5

// Subject is the document handed down the validator chain. The schema validator
// decodes Document into State; later validators read State and, when the state
// belongs to a stored workflow, the Workflow envelope.
type Subject struct {
	Document    json.RawMessage
	State       *models.WorkflowState
	Workflow    *models.Workflow
	Suggestions []string
}

// ForDocument wraps a raw state document.
func ForDocument(document []byte) *Subject {
	return &Subject{Document: document}
}

// ForState wraps a decoded state that has no workflow envelope.
func ForState(state *models.WorkflowState) *Subject {
	return &Subject{State: state}
}

// ForWorkflow wraps a workflow and its state.
func ForWorkflow(workflow *models.Workflow) *Subject {
	return &Subject{State: &workflow.State, Workflow: workflow}
}

// Validator checks one aspect of a workflow state.
type Validator interface {
	Name() string
	Validate(ctx context.Context, subject *Subject) *models.ValidationResult
}

// Gate is implemented by validators whose failure stops the chain.
type Gate interface {
	Gate() bool
}

// Pipeline runs validators in order and aggregates their results.
type Pipeline struct {
	validators []Validator
	logger     *slog.Logger
}

func NewPipeline(logger *slog.Logger, validators ...Validator) *Pipeline {
	return &Pipeline{
		validators: validators,
		logger:     logger.With("module", "validation"),
	}
}

// Default returns the standard chain: schema, referential, structural, compliance, stylistic.
func Default(logger *slog.Logger) *Pipeline {
	return NewPipeline(logger,
		NewSchemaValidator(),
		NewReferentialValidator(),
		NewStructuralValidator(),
		NewComplianceValidator(),
		NewStylisticValidator(),
	)
}

// Validators returns the names of the chain in execution order.
func (p *Pipeline) Validators() []string {
	names := make([]string, 0, len(p.validators))
	for _, v := range p.validators {
		names = append(names, v.Name())
	}

	return names
}

// Validate runs the chain over subject. A failing gate validator stops the chain;
// otherwise every validator runs regardless of earlier failures.
func (p *Pipeline) Validate(ctx context.Context, subject *Subject) models.ValidationReport {
	report := models.ValidationReport{
		ValidationResults: make([]models.ValidationResult, 0, len(p.validators)),
		Suggestions:       make([]string, 0),
	}

	warnings := 0

	for _, v := range p.validators {
		result := p.run(ctx, v, subject)
		report.ValidationResults = append(report.ValidationResults, *result)
		warnings += len(result.Warnings)

		if v.Name() == ComplianceValidatorName {
			report.AgentForgeCompliance = result.Valid
		}

		if gate, ok := v.(Gate); ok && gate.Gate() && !result.Valid {
			p.logger.DebugContext(ctx, "Validation chain stopped", "validator", v.Name(), "errors", len(result.Errors))

			break
		}
	}

	report.OverallValid = true

	for _, result := range report.ValidationResults {
		if !result.Valid && len(result.Errors) > 0 {
			report.OverallValid = false
		}

		report.Suggestions = appendUnique(report.Suggestions, result.Suggestions...)
	}

	report.Suggestions = appendUnique(report.Suggestions, subject.Suggestions...)

	if warnings > reviewWarningsThreshold {
		report.Suggestions = appendUnique(report.Suggestions, "Review warnings to improve workflow quality")
	}

	p.logger.DebugContext(ctx, "Validation finished",
		"overall_valid", report.OverallValid,
		"errors", report.ErrorCount(),
		"warnings", warnings)

	return report
}

func (p *Pipeline) run(ctx context.Context, v Validator, subject *Subject) (result *models.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "Validator panicked", "validator", v.Name(), "panic", r)

			result = models.NewValidationResult(v.Name())
			result.AddError(fmt.Sprintf("validator failed unexpectedly: %v", r))
		}
	}()

	result = v.Validate(ctx, subject)
	if result == nil {
		result = models.NewValidationResult(v.Name())
	}

	result.ValidatorName = v.Name()

	return result
}

func appendUnique(list []string, values ...string) []string {
	for _, value := range values {
		if value == "" || slices.Contains(list, value) {
			continue
		}

		list = append(list, value)
	}

	return list
}

// requireState fails result when no decoded state is available, which only happens
// when a validator runs without the schema validator ahead of it.
func requireState(subject *Subject, result *models.ValidationResult) bool {
	if subject == nil || subject.State == nil {
		result.AddError("no decoded workflow state to validate")

		return false
	}

	return true
}
