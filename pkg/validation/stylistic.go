package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/google/uuid"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Canvas bounds outside of which a block is likely off-screen in the editor.
const (
	minPositionX = 0
	maxPositionX = 2000
	minPositionY = -200
	maxPositionY = 1000
)

// StylisticValidator checks identifiers, timestamps, color and layout, and offers
// suggestions that make a workflow easier to read.
type StylisticValidator struct{}

func NewStylisticValidator() *StylisticValidator {
	return &StylisticValidator{}
}

func (v *StylisticValidator) Name() string {
	return StylisticValidatorName
}

func (v *StylisticValidator) Validate(_ context.Context, subject *Subject) *models.ValidationResult {
	result := models.NewValidationResult(v.Name())
	if !requireState(subject, result) {
		return result
	}

	state := subject.State

	created := checkTimestamp(result, "metadata createdAt", state.Metadata.CreatedAt)
	updated := checkTimestamp(result, "metadata updatedAt", state.Metadata.UpdatedAt)

	if created != nil && updated != nil && updated.Before(*created) {
		result.AddError(fmt.Sprintf("metadata updatedAt %s is before createdAt %s",
			state.Metadata.UpdatedAt, state.Metadata.CreatedAt))
	}

	if subject.Workflow != nil {
		checkWorkflow(result, subject.Workflow)
	}

	for _, id := range models.SortedBlockIDs(state.Blocks) {
		block := state.Blocks[id]
		if block == nil {
			continue
		}

		if strings.TrimSpace(block.Name) == "" {
			result.AddSuggestion(fmt.Sprintf("Name block %q so the workflow is easier to follow", id))
		}

		x, y := block.Position.X, block.Position.Y
		if x < minPositionX || x > maxPositionX || y < minPositionY || y > maxPositionY {
			result.AddWarning(fmt.Sprintf("block %q position (%g, %g) is outside the visible canvas", id, x, y))
		}
	}

	return result
}

func checkWorkflow(result *models.ValidationResult, workflow *models.Workflow) {
	_, err := uuid.Parse(workflow.ID)
	if err != nil {
		result.AddError(fmt.Sprintf("workflow id %q is not a UUID", workflow.ID))
	}

	if !hexColor.MatchString(workflow.Color) {
		result.AddError(fmt.Sprintf("workflow color %q is not a #RRGGBB hex color", workflow.Color))
	}

	if workflow.UpdatedAt.Before(workflow.CreatedAt) {
		result.AddError("workflow updated_at is before created_at")
	}

	stamps := []struct {
		field string
		value time.Time
	}{
		{"created_at", workflow.CreatedAt},
		{"updated_at", workflow.UpdatedAt},
		{"last_synced", workflow.LastSynced},
	}

	for _, stamp := range stamps {
		if _, offset := stamp.value.Zone(); offset != 0 {
			result.AddError(fmt.Sprintf("workflow %s is not in UTC", stamp.field))
		}
	}

	if workflow.Description == nil || strings.TrimSpace(*workflow.Description) == "" {
		result.AddSuggestion("Add a description so collaborators understand what the workflow does")
	}

	if strings.EqualFold(workflow.Color, models.DefaultColor) {
		result.AddSuggestion("Pick a distinctive color to tell this workflow apart in the sidebar")
	}
}

func checkTimestamp(result *models.ValidationResult, field, value string) *time.Time {
	if value == "" {
		result.AddError(field + " is missing")

		return nil
	}

	parsed, err := models.ParseTimestamp(value)
	if err != nil {
		result.AddError(fmt.Sprintf("%s %q is not an ISO-8601 timestamp", field, value))

		return nil
	}

	if _, offset := parsed.Zone(); offset != 0 {
		result.AddError(fmt.Sprintf("%s %q is not in UTC", field, value))
	}

	return &parsed
}
