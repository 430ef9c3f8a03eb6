package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(WorkflowCreatedEvent, "wf-1", "user-1")

	_, err := uuid.Parse(event.ID)
	require.NoError(t, err)
	assert.Equal(t, WorkflowCreatedEvent, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, "user-1", event.Owner)
	assert.NotNil(t, event.Metadata)
	assert.False(t, event.Timestamp.IsZero())
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, WorkflowCreatedEvent, WorkflowCreated{}.GetType())
	assert.Equal(t, WorkflowUpdatedEvent, WorkflowUpdated{}.GetType())
	assert.Equal(t, WorkflowDeletedEvent, WorkflowDeleted{}.GetType())
	assert.Equal(t, WorkflowRejectedEvent, WorkflowRejected{}.GetType())
}

func TestNew_DecodesPublishedPayload(t *testing.T) {
	published := WorkflowRejected{
		BaseEvent:    NewBaseEvent(WorkflowRejectedEvent, "wf-1", "user-1"),
		Source:       SourcePrompt,
		ErrorCount:   2,
		WarningCount: 1,
	}

	payload, err := json.Marshal(published)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"workflow.rejected"`)

	decoded := New(WorkflowRejectedEvent)
	require.IsType(t, &WorkflowRejected{}, decoded)
	require.NoError(t, json.Unmarshal(payload, decoded))
	assert.Equal(t, 2, decoded.(*WorkflowRejected).ErrorCount)

	assert.Nil(t, New("workflow.triggered"))
}
