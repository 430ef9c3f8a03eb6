package validation

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, v Validator, subject *Subject) *models.ValidationResult {
	t.Helper()

	result := v.Validate(context.Background(), subject)
	require.NotNil(t, result)
	assert.Equal(t, v.Name(), result.ValidatorName)

	return result
}

func TestReferential_BlockKeyMismatch(t *testing.T) {
	state := linearState()
	state.Blocks["renamed"] = state.Blocks["output_1"]
	delete(state.Blocks, "output_1")

	result := validate(t, NewReferentialValidator(), ForState(state))

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, `block key "renamed" does not match block id "output_1"`)
	assert.True(t, containsSubstring(result.Errors, `target "output_1"`))
}

func TestReferential_ParentLinks(t *testing.T) {
	state := linearState()

	missing := "nowhere"
	state.Blocks["agent_1"].ParentID = &missing

	result := validate(t, NewReferentialValidator(), ForState(state))
	assert.Contains(t, result.Errors, `block "agent_1" references missing parent "nowhere"`)

	state = linearState()
	loopA, loopB := "agent_1", "output_1"
	state.Blocks["output_1"].ParentID = &loopA
	state.Blocks["agent_1"].ParentID = &loopB

	result = validate(t, NewReferentialValidator(), ForState(state))
	assert.Contains(t, result.Errors, `block "agent_1" is its own ancestor through parent_id`)
	assert.Contains(t, result.Errors, `block "output_1" is its own ancestor through parent_id`)
}

func TestStructural_Starters(t *testing.T) {
	state := linearState()
	delete(state.Blocks, "starter_1")
	state.Edges = state.Edges[1:]

	result := validate(t, NewStructuralValidator(), ForState(state))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "workflow has no starter block")

	state = linearState()
	state.Blocks["starter_2"] = blocks.NewBlock("starter_2", "starter", "Second", 100, 300, map[string]any{"startWorkflow": "manual"})
	state.Edges = append(state.Edges, models.NewEdge("starter_2", "agent_1"))

	result = validate(t, NewStructuralValidator(), ForState(state))
	assert.True(t, result.Valid)
	assert.True(t, containsSubstring(result.Warnings, "2 starter blocks"))
}

func TestStructural_UnreachableAndIslands(t *testing.T) {
	state := linearState()
	state.Blocks["agent_2"] = blocks.NewBlock("agent_2", "agent", "Orphan", 350, 300, map[string]any{"model": "gpt-4"})
	state.Blocks["output_2"] = blocks.NewBlock("output_2", "output", "Orphan Out", 600, 300, map[string]any{"outputType": "log"})
	state.Edges = append(state.Edges, models.NewEdge("agent_2", "output_2"))

	result := validate(t, NewStructuralValidator(), ForState(state))

	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, `block "agent_2" is not reachable from a starter block`)
	assert.Contains(t, result.Warnings, `block "output_2" is not reachable from a starter block`)
	assert.Contains(t, result.Warnings,
		"workflow has 2 disconnected islands: [agent_1, output_1, starter_1] [agent_2, output_2]")
	assert.Equal(t, 2, result.Metadata["island_count"])
}

func TestStructural_Cycles(t *testing.T) {
	state := linearState()
	state.Edges = append(state.Edges,
		models.NewEdge("output_1", "agent_1"),
		models.NewEdge("output_1", "output_1"),
	)

	result := validate(t, NewStructuralValidator(), ForState(state))

	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, "cycle detected among blocks agent_1, output_1")
	assert.Contains(t, result.Warnings, `block "output_1" has an edge to itself`)
	assert.Equal(t, 2, result.Metadata["cycle_count"])
}

func TestStructural_SubflowEdgesAreNotCycles(t *testing.T) {
	state := linearState()

	loop := "loop_1"
	state.Blocks["loop_1"] = blocks.NewBlock("loop_1", "function", "Loop", 350, 300, map[string]any{"code": "return input"})
	state.Blocks["agent_1"].ParentID = &loop
	state.Subflows["loop_1"] = map[string]any{"nodes": []any{"agent_1"}, "iterations": 3}
	state.Edges = append(state.Edges,
		models.Edge{Source: "starter_1", Target: "loop_1", SourceHandle: "output", TargetHandle: "input"},
		models.Edge{Source: "loop_1", Target: "agent_1", SourceHandle: "loop-start-source", TargetHandle: "input"},
		models.Edge{Source: "agent_1", Target: "loop_1", SourceHandle: "output", TargetHandle: "loop-end-target"},
	)

	result := validate(t, NewStructuralValidator(), ForState(state))

	assert.Equal(t, 0, result.Metadata["cycle_count"])
	assert.Equal(t, 1, result.Metadata["island_count"])
}

func TestStructural_DisabledFeedsEnabled(t *testing.T) {
	state := linearState()
	state.Blocks["agent_1"].Enabled = false

	result := validate(t, NewStructuralValidator(), ForState(state))

	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, `disabled block "agent_1" feeds enabled block "output_1"`)
}

func TestCompliance_Blocks(t *testing.T) {
	state := linearState()
	state.Blocks["mystery"] = &models.Block{ID: "mystery", Type: "teleporter", Name: "Mystery", Enabled: true}
	state.Blocks["agent_1"].SubBlocks["model"] = models.SubBlock{ID: "model", Type: blocks.InputCombobox, Value: "llama-9000"}
	state.Blocks["api_1"] = blocks.NewBlock("api_1", "api", "Fetch", 350, 300, map[string]any{"method": "FETCH"})

	result := validate(t, NewComplianceValidator(), ForState(state))

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, `block "mystery" has unknown type "teleporter"`)
	assert.Contains(t, result.Errors, `block "api_1" (api) is missing required sub-block "url"`)
	assert.Contains(t, result.Warnings, `block "agent_1" uses unrecognised model "llama-9000"`)
	assert.Contains(t, result.Warnings, `block "api_1" uses unsupported HTTP method "FETCH"`)
	assert.Equal(t, []string{"api_integration"}, result.Metadata["detected_patterns"])
}

func TestCompliance_StarterSchedule(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		valid  bool
	}{
		{"valid cron", map[string]any{"startWorkflow": "schedule", "scheduleType": "cron", "cronExpression": "*/15 * * * *"}, true},
		{"descriptor", map[string]any{"startWorkflow": "schedule", "scheduleType": "cron", "cronExpression": "@hourly"}, true},
		{"invalid cron", map[string]any{"startWorkflow": "schedule", "scheduleType": "cron", "cronExpression": "every tuesday"}, false},
		{"missing cron", map[string]any{"startWorkflow": "schedule", "scheduleType": "cron"}, false},
		{"missing start mode", map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := linearState()
			state.Blocks["starter_1"] = blocks.NewBlock("starter_1", "starter", "Start", 100, 100, tt.values)

			result := validate(t, NewComplianceValidator(), ForState(state))

			assert.Equal(t, tt.valid, result.Valid, result.Errors)
		})
	}
}

func TestCompliance_AgentTemperature(t *testing.T) {
	state := linearState()
	state.Blocks["agent_1"].SubBlocks["temperature"] = models.SubBlock{ID: "temperature", Type: blocks.InputSlider, Value: 3.5}

	result := validate(t, NewComplianceValidator(), ForState(state))

	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, `block "agent_1" temperature 3.5 is outside 0..2`)
}

func TestStylistic_Timestamps(t *testing.T) {
	state := linearState()
	state.Metadata.UpdatedAt = "2025-05-01T12:00:00.000Z"

	result := validate(t, NewStylisticValidator(), ForState(state))
	assert.False(t, result.Valid)
	assert.True(t, containsSubstring(result.Errors, "is before createdAt"))

	state = linearState()
	state.Metadata.CreatedAt = "2025-06-01T14:00:00+02:00"

	result = validate(t, NewStylisticValidator(), ForState(state))
	assert.True(t, containsSubstring(result.Errors, "is not in UTC"))

	state = linearState()
	state.Metadata.CreatedAt = "yesterday"

	result = validate(t, NewStylisticValidator(), ForState(state))
	assert.True(t, containsSubstring(result.Errors, "is not an ISO-8601 timestamp"))
}

func TestStylistic_Workflow(t *testing.T) {
	workflow := models.NewWorkflow("not-a-uuid", "user-1", "Demo", stamp)
	workflow.State = *linearState()
	workflow.Color = "blue"
	workflow.CreatedAt = stamp.In(time.FixedZone("CEST", 2*60*60))

	result := validate(t, NewStylisticValidator(), ForWorkflow(workflow))

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, `workflow id "not-a-uuid" is not a UUID`)
	assert.Contains(t, result.Errors, `workflow color "blue" is not a #RRGGBB hex color`)
	assert.Contains(t, result.Errors, "workflow created_at is not in UTC")
	assert.Contains(t, result.Suggestions, "Add a description so collaborators understand what the workflow does")
}

func TestStylistic_Suggestions(t *testing.T) {
	workflow := models.NewWorkflow("0197a1b2-0000-7000-8000-000000000001", "user-1", "Demo", stamp)
	workflow.State = *linearState()
	workflow.State.Blocks["agent_1"].Name = ""
	workflow.State.Blocks["output_1"].Position = models.Position{X: 2500, Y: 100}

	result := validate(t, NewStylisticValidator(), ForWorkflow(workflow))

	assert.True(t, result.Valid, result.Errors)
	assert.Contains(t, result.Suggestions, `Name block "agent_1" so the workflow is easier to follow`)
	assert.Contains(t, result.Suggestions, "Pick a distinctive color to tell this workflow apart in the sidebar")
	assert.Contains(t, result.Warnings, `block "output_1" position (2500, 100) is outside the visible canvas`)
}

func TestValidatorsWithoutState(t *testing.T) {
	for _, v := range []Validator{
		NewReferentialValidator(),
		NewStructuralValidator(),
		NewComplianceValidator(),
		NewStylisticValidator(),
	} {
		result := validate(t, v, &Subject{})
		assert.False(t, result.Valid, v.Name())
	}
}
