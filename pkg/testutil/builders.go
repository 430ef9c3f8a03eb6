// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/google/uuid"
)

// FixedTime is the clock used by the builders.
var FixedTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// CreateTestBlock creates a starter block with default values that can be overridden.
func CreateTestBlock(overrides ...func(*models.Block)) *models.Block {
	block := blocks.NewBlock("starter_1", models.BlockTypeStarter, "Start", 100, 100, map[string]any{
		"startWorkflow": "manual",
	})

	for _, override := range overrides {
		override(block)
	}

	return block
}

// WithAgentBlock turns the block into an agent with a known model.
func WithAgentBlock(id string) func(*models.Block) {
	return func(b *models.Block) {
		*b = *blocks.NewBlock(id, "agent", "Analyst", 400, 100, map[string]any{
			"model":        "gpt-4o",
			"systemPrompt": "Summarise the input.",
			"temperature":  0.2,
		})
	}
}

// WithOutputBlock turns the block into an output block.
func WithOutputBlock(id string) func(*models.Block) {
	return func(b *models.Block) {
		*b = *blocks.NewBlock(id, "output", "Result", 700, 100, map[string]any{
			"outputType": "log",
		})
	}
}

// WithSubBlock sets a sub-block value, keeping the catalog input type.
func WithSubBlock(id string, value any) func(*models.Block) {
	return func(b *models.Block) {
		b.SubBlocks[id] = models.SubBlock{ID: id, Type: blocks.InputType(b.Type, id), Value: value}
	}
}

// CreateTestState creates a valid starter -> agent -> output state.
func CreateTestState(overrides ...func(*models.WorkflowState)) *models.WorkflowState {
	state := models.NewWorkflowState(FixedTime)

	starter := CreateTestBlock()
	agent := CreateTestBlock(WithAgentBlock("agent_1"))
	output := CreateTestBlock(WithOutputBlock("output_1"))

	for _, block := range []*models.Block{starter, agent, output} {
		state.Blocks[block.ID] = block
	}

	state.Edges = append(state.Edges,
		models.NewEdge(starter.ID, agent.ID),
		models.NewEdge(agent.ID, output.ID),
	)

	for _, override := range overrides {
		override(&state)
	}

	return &state
}

// WithBlock adds or replaces a block.
func WithBlock(block *models.Block) func(*models.WorkflowState) {
	return func(s *models.WorkflowState) {
		s.Blocks[block.ID] = block
	}
}

// WithEdge appends an edge without checking its endpoints.
func WithEdge(source, target string) func(*models.WorkflowState) {
	return func(s *models.WorkflowState) {
		s.Edges = append(s.Edges, models.NewEdge(source, target))
	}
}

// WithoutBlock removes a block but leaves its edges.
func WithoutBlock(id string) func(*models.WorkflowState) {
	return func(s *models.WorkflowState) {
		delete(s.Blocks, id)
	}
}

// CreateTestWorkflow creates a valid, described workflow owned by "user-1".
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := models.NewWorkflow(uuid.NewString(), "user-1", "Test Workflow", FixedTime)
	workflow.State = *CreateTestState()
	workflow.Color = "#10B981"

	description := "Workflow used in tests"
	workflow.Description = &description

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithOwner sets the workflow owner.
func WithOwner(owner string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.UserID = owner
	}
}

// WithState replaces the workflow state.
func WithState(state *models.WorkflowState) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.State = *state
	}
}

// StateDocument encodes a state as the raw document a synthesizer would return.
func StateDocument(state *models.WorkflowState) json.RawMessage {
	document, err := json.Marshal(state)
	if err != nil {
		panic(err)
	}

	return document
}
