package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		notFound := persistence.NewWorkflowError("WorkflowByID", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(notFound))
		assert.False(t, persistence.IsPersistenceFailed(notFound))
		assert.True(t, errors.Is(notFound, persistence.ErrWorkflowNotFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("UpdateWorkflow", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "UpdateWorkflow")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})

	t.Run("failures keep their cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := persistence.Failed("InsertWorkflow", "workflow-123", cause)

		assert.True(t, persistence.IsPersistenceFailed(err))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("patch errors", func(t *testing.T) {
		assert.True(t, persistence.IsInvalidPatch(persistence.Patch{"id": "x"}.Validate()))
		assert.True(t, persistence.IsInvalidPatch(persistence.Patch{"owner": "x"}.Validate()))
		assert.False(t, persistence.IsInvalidPatch(persistence.ErrWorkflowNotFound))
	})
}
