package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_MarshalUsesCamelCase(t *testing.T) {
	metadata := Metadata{
		Version:   "1.0.0",
		CreatedAt: "2025-01-02T03:04:05.000Z",
		UpdatedAt: "2025-01-02T03:04:06.000Z",
	}

	data, err := json.Marshal(metadata)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"version": "1.0.0",
		"createdAt": "2025-01-02T03:04:05.000Z",
		"updatedAt": "2025-01-02T03:04:06.000Z"
	}`, string(data))
}

func TestMetadata_UnmarshalAcceptsSnakeCase(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "camel case",
			payload: `{"version":"1.0.0","createdAt":"2025-01-02T03:04:05.000Z","updatedAt":"2025-01-02T03:04:06.000Z"}`,
		},
		{
			name:    "snake case",
			payload: `{"version":"1.0.0","created_at":"2025-01-02T03:04:05.000Z","updated_at":"2025-01-02T03:04:06.000Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var metadata Metadata

			err := json.Unmarshal([]byte(tt.payload), &metadata)
			require.NoError(t, err)

			assert.Equal(t, "1.0.0", metadata.Version)
			assert.Equal(t, "2025-01-02T03:04:05.000Z", metadata.CreatedAt)
			assert.Equal(t, "2025-01-02T03:04:06.000Z", metadata.UpdatedAt)
		})
	}
}

func TestEdge_UnmarshalDefaultsHandles(t *testing.T) {
	var edge Edge

	err := json.Unmarshal([]byte(`{"source":"a","target":"b"}`), &edge)
	require.NoError(t, err)

	assert.Equal(t, "a", edge.Source)
	assert.Equal(t, "b", edge.Target)
	assert.Equal(t, DefaultSourceHandle, edge.SourceHandle)
	assert.Equal(t, DefaultTargetHandle, edge.TargetHandle)

	err = json.Unmarshal([]byte(`{"source":"a","target":"b","source_handle":"true","target_handle":"in"}`), &edge)
	require.NoError(t, err)

	assert.Equal(t, "true", edge.SourceHandle)
	assert.Equal(t, "in", edge.TargetHandle)
}

func TestNewWorkflowState_SerializesEmptyContainers(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	state := NewWorkflowState(now)

	data, err := json.Marshal(state)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"blocks": {},
		"edges": [],
		"subflows": {},
		"variables": {},
		"metadata": {
			"version": "1.0.0",
			"createdAt": "2025-03-04T05:06:07.000Z",
			"updatedAt": "2025-03-04T05:06:07.000Z"
		}
	}`, string(data))
}

func TestWorkflowState_Normalize(t *testing.T) {
	state := WorkflowState{
		Blocks: map[string]*Block{
			"start": {ID: "start", Type: BlockTypeStarter},
		},
	}

	state.Normalize()

	assert.NotNil(t, state.Edges)
	assert.NotNil(t, state.Subflows)
	assert.NotNil(t, state.Variables)
	assert.NotNil(t, state.Blocks["start"].SubBlocks)
	assert.NotNil(t, state.Blocks["start"].Outputs)
}

func TestWorkflow_JSONRoundTrip(t *testing.T) {
	now := time.Now()
	workflow := NewWorkflow(uuid.New().String(), "u1", "Round Trip", now)
	workflow.State.Blocks["start"] = &Block{
		ID:        "start",
		Type:      BlockTypeStarter,
		Name:      "Start",
		Enabled:   true,
		Height:    95,
		SubBlocks: map[string]SubBlock{"startWorkflow": {ID: "startWorkflow", Type: "dropdown", Value: "manual"}},
		Outputs:   map[string]any{},
	}

	first, err := json.Marshal(workflow)
	require.NoError(t, err)

	var decoded Workflow

	err = json.Unmarshal(first, &decoded)
	require.NoError(t, err)

	second, err := json.Marshal(&decoded)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Contains(t, string(first), `"createdAt"`)
	assert.Contains(t, string(first), `"created_at"`)
	assert.True(t, decoded.CreatedAt.Equal(workflow.CreatedAt))
}

func TestWorkflow_Touch(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	workflow := NewWorkflow(uuid.New().String(), "u1", "Touched", created)

	later := created.Add(time.Hour)
	workflow.Touch(later)

	assert.Equal(t, created, workflow.CreatedAt)
	assert.Equal(t, later, workflow.UpdatedAt)
	assert.Equal(t, "2025-01-01T01:00:00.000Z", workflow.State.Metadata.UpdatedAt)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", workflow.State.Metadata.CreatedAt)
}

func TestWorkflow_Validation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	valid := NewWorkflow(uuid.New().String(), "u1", "Valid", time.Now())
	require.NoError(t, validate.Struct(valid))

	invalid := NewWorkflow("not-a-uuid", "", "", time.Now())
	err := validate.Struct(invalid)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fieldErr.Field())
	}

	assert.ElementsMatch(t, []string{"ID", "UserID", "Name"}, fields)
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		raw      string
		expected Pattern
	}{
		{"trading_bot", PatternTradingBot},
		{"  Lead_Generation\n", PatternLeadGeneration},
		{"DATA_PIPELINE", PatternDataPipeline},
		{"basic", PatternUnknown},
		{"", PatternUnknown},
		{"the answer is trading_bot", PatternUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePattern(tt.raw))
		})
	}
}

func TestStateGenerationOptions_Defaults(t *testing.T) {
	var options StateGenerationOptions

	err := json.Unmarshal([]byte(`{}`), &options)
	require.NoError(t, err)
	assert.Equal(t, DefaultStateGenerationOptions(), options)

	err = json.Unmarshal([]byte(`{"use_ai_enhancement":false,"optimization_goal":"cost"}`), &options)
	require.NoError(t, err)
	assert.False(t, options.UseAIEnhancement)
	assert.True(t, options.IncludeSuggestions)
	assert.Equal(t, OptimizationCost, options.OptimizationGoal)
}

func TestValidationReport_Helpers(t *testing.T) {
	result := NewValidationResult("referential")
	result.AddError("edge target 'x' does not exist")
	result.AddWarning("noise")

	report := ValidationReport{
		ValidationResults: []ValidationResult{*NewValidationResult("schema"), *result},
	}

	found, ok := report.Result("referential")
	require.True(t, ok)
	assert.False(t, found.Valid)
	assert.Equal(t, 1, report.ErrorCount())
	assert.Equal(t, []string{"referential: edge target 'x' does not exist"}, report.Errors())

	_, ok = report.Result("missing")
	assert.False(t, ok)
}

func TestJSONSchema_Defaults(t *testing.T) {
	schema := &JSONSchema{
		Type: "object",
		Properties: map[string]*Property{
			"trading_pair": {Type: "string", Default: "BTC/USD"},
			"note":         {Type: "string"},
		},
	}

	assert.Equal(t, map[string]any{"trading_pair": "BTC/USD"}, schema.Defaults())
}
