package persistence_test

import (
	"testing"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		patch   persistence.Patch
		wantErr error
	}{
		{"empty", persistence.Patch{}, nil},
		{"allowed", persistence.Patch{"name": "n", "color": "#000000", "state": map[string]any{}}, nil},
		{"id", persistence.Patch{"id": "other", "name": "n"}, persistence.ErrForbiddenPatchKey},
		{"user_id", persistence.Patch{"user_id": "mallory"}, persistence.ErrForbiddenPatchKey},
		{"created_at", persistence.Patch{"created_at": "2020-01-01T00:00:00Z"}, persistence.ErrForbiddenPatchKey},
		{"unknown", persistence.Patch{"owner": "mallory"}, persistence.ErrUnknownPatchKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPatch_ForbiddenKeysAreNamed(t *testing.T) {
	err := persistence.Patch{"user_id": 1, "id": 2}.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "id, user_id")
}

func TestApplyPatch(t *testing.T) {
	workflow := models.NewWorkflow("0190c2f4-8e5a-7b3c-9d1e-2f3a4b5c6d7e", "user-1", "Original", created)

	patched, err := persistence.ApplyPatch(workflow, persistence.Patch{
		"name":        "Renamed",
		"description": "Now described",
		"variables":   map[string]any{"RISK": 0.02},
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", patched.Name)
	require.NotNil(t, patched.Description)
	assert.Equal(t, "Now described", *patched.Description)
	assert.Equal(t, 0.02, patched.Variables["RISK"])
	assert.Equal(t, workflow.ID, patched.ID)
	assert.Equal(t, workflow.UserID, patched.UserID)
	assert.True(t, workflow.CreatedAt.Equal(patched.CreatedAt))

	assert.Equal(t, "Original", workflow.Name, "input must not change")
}

func TestApplyPatch_Rejects(t *testing.T) {
	workflow := models.NewWorkflow("0190c2f4-8e5a-7b3c-9d1e-2f3a4b5c6d7e", "user-1", "Original", created)

	_, err := persistence.ApplyPatch(workflow, persistence.Patch{"created_at": created.Add(time.Hour)})
	assert.ErrorIs(t, err, persistence.ErrForbiddenPatchKey)

	_, err = persistence.ApplyPatch(workflow, persistence.Patch{"run_count": "many"})
	assert.ErrorIs(t, err, persistence.ErrInvalidPatch)
}

func TestListFilter_Normalized(t *testing.T) {
	assert.Equal(t, persistence.ListFilter{Limit: 20}, persistence.ListFilter{}.Normalized())
	assert.Equal(t, persistence.ListFilter{Limit: 100}, persistence.ListFilter{Limit: 1000}.Normalized())
	assert.Equal(t, persistence.ListFilter{Owner: "u", Limit: 5}, persistence.ListFilter{Owner: "u", Limit: 5, Offset: -3}.Normalized())
}

func TestBlockRows(t *testing.T) {
	workflow := models.NewWorkflow("0197a3c4-0000-7000-8000-000000000001", "u1", "Rows", created)
	parent := "group"
	workflow.State.Blocks["b"] = &models.Block{ID: "b", Type: "agent", Position: models.Position{X: 10, Y: 20}, ParentID: &parent}
	workflow.State.Blocks["a"] = &models.Block{ID: "a", Type: models.BlockTypeStarter}
	workflow.State.Blocks["nil"] = nil

	rows := persistence.BlockRows(workflow)
	require.Len(t, rows, 2)

	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
	assert.Equal(t, workflow.ID, rows[1].WorkflowID)
	assert.InDelta(t, 10.0, rows[1].PositionX, 0.0001)
	assert.InDelta(t, 20.0, rows[1].PositionY, 0.0001)
	assert.Equal(t, &parent, rows[1].ParentID)
	assert.NotNil(t, rows[0].SubBlocks)
	assert.NotNil(t, rows[0].Outputs)
	assert.True(t, rows[0].CreatedAt.Equal(workflow.CreatedAt))
}
