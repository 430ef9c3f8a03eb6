package validation

import (
	"context"
	"fmt"

	"github.com/dukex/forgestate/pkg/models"
)

// ReferentialValidator checks that block keys, edge endpoints and parent links
// point at blocks that exist.
type ReferentialValidator struct{}

func NewReferentialValidator() *ReferentialValidator {
	return &ReferentialValidator{}
}

func (v *ReferentialValidator) Name() string {
	return ReferentialValidatorName
}

func (v *ReferentialValidator) Validate(_ context.Context, subject *Subject) *models.ValidationResult {
	result := models.NewValidationResult(v.Name())
	if !requireState(subject, result) {
		return result
	}

	state := subject.State
	ids := models.SortedBlockIDs(state.Blocks)

	for _, key := range ids {
		block := state.Blocks[key]
		if block == nil {
			result.AddError(fmt.Sprintf("block %q is null", key))

			continue
		}

		if block.ID != key {
			result.AddError(fmt.Sprintf("block key %q does not match block id %q", key, block.ID))
		}
	}

	dangling := 0

	for i, edge := range state.Edges {
		if !exists(state, edge.Source) {
			result.AddError(fmt.Sprintf("edge %d (%s) source %q does not reference an existing block", i, edgeLabel(edge), edge.Source))
			dangling++
		}

		if !exists(state, edge.Target) {
			result.AddError(fmt.Sprintf("edge %d (%s) target %q does not reference an existing block", i, edgeLabel(edge), edge.Target))
			dangling++
		}
	}

	for _, key := range ids {
		block := state.Blocks[key]
		if block == nil || block.ParentID == nil {
			continue
		}

		parent := *block.ParentID
		if !exists(state, parent) {
			result.AddError(fmt.Sprintf("block %q references missing parent %q", key, parent))

			continue
		}

		if inParentCycle(state, key) {
			result.AddError(fmt.Sprintf("block %q is its own ancestor through parent_id", key))
		}
	}

	result.SetMetadata("dangling_references", dangling)

	return result
}

func exists(state *models.WorkflowState, id string) bool {
	block, ok := state.Blocks[id]

	return ok && block != nil
}

func inParentCycle(state *models.WorkflowState, start string) bool {
	seen := map[string]bool{start: true}
	current := state.Blocks[start]

	for current != nil && current.ParentID != nil {
		next := *current.ParentID
		if next == start {
			return true
		}

		if seen[next] {
			// a cycle further up the chain, reported for its own members
			return false
		}

		seen[next] = true
		current = state.Blocks[next]
	}

	return false
}

func edgeLabel(edge models.Edge) string {
	if edge.ID != "" {
		return edge.ID
	}

	return edge.Source + "->" + edge.Target
}
