package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/forgestate/pkg/eventbus"
	"github.com/dukex/forgestate/pkg/events"
)

// ActivitySnapshot counts the lifecycle events consumed since startup.
type ActivitySnapshot struct {
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Deleted   int        `json:"deleted"`
	Rejected  int        `json:"rejected"`
	LastEvent *time.Time `json:"last_event,omitempty"`
}

// ActivityRecorder consumes workflow lifecycle events from the bus and logs them.
type ActivityRecorder struct {
	logger *slog.Logger

	mu       sync.Mutex
	snapshot ActivitySnapshot
}

func NewActivityRecorder(logger *slog.Logger) *ActivityRecorder {
	return &ActivityRecorder{logger: logger.With("module", "activity")}
}

// Start registers a handler per lifecycle event and starts consuming the topic.
func (r *ActivityRecorder) Start(ctx context.Context, bus eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowCreatedEvent:  r.handleWorkflowCreated,
		events.WorkflowUpdatedEvent:  r.handleWorkflowUpdated,
		events.WorkflowDeletedEvent:  r.handleWorkflowDeleted,
		events.WorkflowRejectedEvent: r.handleWorkflowRejected,
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s events: %w", eventType, err)
		}
	}

	if err := bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to consume workflow events: %w", err)
	}

	r.logger.InfoContext(ctx, "Activity subscriptions configured")

	return nil
}

func (r *ActivityRecorder) Snapshot() ActivitySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshot
	if snapshot.LastEvent != nil {
		last := *snapshot.LastEvent
		snapshot.LastEvent = &last
	}

	return snapshot
}

func (r *ActivityRecorder) record(at time.Time, counter func(*ActivitySnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter(&r.snapshot)

	if r.snapshot.LastEvent == nil || at.After(*r.snapshot.LastEvent) {
		r.snapshot.LastEvent = &at
	}
}

func (r *ActivityRecorder) handleWorkflowCreated(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.WorkflowCreated)
	if !ok {
		return fmt.Errorf("invalid event type for workflow.created: %T", eventData)
	}

	r.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", event.WorkflowID,
		"source", event.Source,
		"pattern", event.Pattern,
		"block_count", event.BlockCount)

	r.record(event.Timestamp, func(s *ActivitySnapshot) { s.Created++ })

	return nil
}

func (r *ActivityRecorder) handleWorkflowUpdated(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.WorkflowUpdated)
	if !ok {
		return fmt.Errorf("invalid event type for workflow.updated: %T", eventData)
	}

	r.logger.InfoContext(ctx, "Workflow updated", "workflow_id", event.WorkflowID, "fields", event.Fields)

	r.record(event.Timestamp, func(s *ActivitySnapshot) { s.Updated++ })

	return nil
}

func (r *ActivityRecorder) handleWorkflowDeleted(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.WorkflowDeleted)
	if !ok {
		return fmt.Errorf("invalid event type for workflow.deleted: %T", eventData)
	}

	r.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", event.WorkflowID)

	r.record(event.Timestamp, func(s *ActivitySnapshot) { s.Deleted++ })

	return nil
}

func (r *ActivityRecorder) handleWorkflowRejected(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.WorkflowRejected)
	if !ok {
		return fmt.Errorf("invalid event type for workflow.rejected: %T", eventData)
	}

	r.logger.WarnContext(ctx, "Workflow rejected",
		"source", event.Source,
		"template_name", event.TemplateName,
		"error_count", event.ErrorCount)

	r.record(event.Timestamp, func(s *ActivitySnapshot) { s.Rejected++ })

	return nil
}
