// Package events defines the workflow lifecycle notifications published after gateway writes.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "forgestate.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent  EventType = "workflow.created"
	WorkflowUpdatedEvent  EventType = "workflow.updated"
	WorkflowDeletedEvent  EventType = "workflow.deleted"
	WorkflowRejectedEvent EventType = "workflow.rejected"
)

// Source names how a candidate workflow was produced.
type Source string

const (
	SourceTemplate Source = "template"
	SourcePrompt   Source = "prompt"
	SourceUpdate   Source = "update"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Owner      string         `json:"owner,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, owner string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Owner:      owner,
		Metadata:   make(map[string]any),
	}
}

type WorkflowCreated struct {
	BaseEvent

	Name         string `json:"name"`
	Source       Source `json:"source"`
	TemplateName string `json:"template_name,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	BlockCount   int    `json:"block_count"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowUpdated struct {
	BaseEvent

	Fields []string `json:"fields"`
}

func (e WorkflowUpdated) GetType() EventType {
	return WorkflowUpdatedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

// WorkflowRejected is published when a candidate fails validation and nothing is written.
type WorkflowRejected struct {
	BaseEvent

	Source       Source `json:"source"`
	TemplateName string `json:"template_name,omitempty"`
	ErrorCount   int    `json:"error_count"`
	WarningCount int    `json:"warning_count"`
}

func (e WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

// New returns an empty event value of the given type for decoding, or nil for unknown types.
func New(eventType EventType) any {
	switch eventType {
	case WorkflowCreatedEvent:
		return &WorkflowCreated{}
	case WorkflowUpdatedEvent:
		return &WorkflowUpdated{}
	case WorkflowDeletedEvent:
		return &WorkflowDeleted{}
	case WorkflowRejectedEvent:
		return &WorkflowRejected{}
	default:
		return nil
	}
}
