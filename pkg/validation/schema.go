package validation

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed state.schema.json
var stateSchemaDocument []byte

var compiledStateSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(stateSchemaDocument))
})

// StateSchema returns the JSON schema every workflow state document must satisfy.
func StateSchema() json.RawMessage {
	return stateSchemaDocument
}

// SchemaValidator checks the state document against the embedded JSON schema and
// decodes it for the rest of the chain. It is the chain's gate.
type SchemaValidator struct{}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

func (v *SchemaValidator) Name() string {
	return SchemaValidatorName
}

func (v *SchemaValidator) Gate() bool {
	return true
}

func (v *SchemaValidator) Validate(_ context.Context, subject *Subject) *models.ValidationResult {
	result := models.NewValidationResult(v.Name())

	document, err := v.document(subject)
	if err != nil {
		result.AddError(err.Error())

		return result
	}

	schema, err := compiledStateSchema()
	if err != nil {
		result.AddError(fmt.Sprintf("state schema failed to load: %v", err))

		return result
	}

	outcome, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		result.AddError(fmt.Sprintf("document is not valid JSON: %v", err))

		return result
	}

	if !outcome.Valid() {
		messages := make([]string, 0, len(outcome.Errors()))
		for _, desc := range outcome.Errors() {
			messages = append(messages, describe(desc))
		}

		sort.Strings(messages)

		for _, message := range messages {
			result.AddError(message)
		}

		return result
	}

	if subject.State == nil {
		var state models.WorkflowState

		err = json.Unmarshal(document, &state)
		if err != nil {
			result.AddError(fmt.Sprintf("failed to decode workflow state: %v", err))

			return result
		}

		state.Normalize()
		subject.State = &state
	}

	result.SetMetadata("block_count", len(subject.State.Blocks))
	result.SetMetadata("edge_count", len(subject.State.Edges))

	return result
}

func (v *SchemaValidator) document(subject *Subject) ([]byte, error) {
	if subject == nil {
		return nil, fmt.Errorf("nothing to validate")
	}

	if len(subject.Document) > 0 {
		subject.State = nil

		return subject.Document, nil
	}

	if subject.State == nil {
		return nil, fmt.Errorf("nothing to validate")
	}

	document, err := json.Marshal(subject.State)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow state: %w", err)
	}

	return document, nil
}

func describe(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "" || field == "(root)" {
		return desc.Description()
	}

	return field + ": " + desc.Description()
}
