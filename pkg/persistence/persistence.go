// Package persistence defines the workflow gateway and the patch rules shared by its implementations.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Persistence is the system of record for workflows. Reads return fresh copies.
type Persistence interface {
	// InsertWorkflow writes a new workflow and its block rows atomically.
	InsertWorkflow(ctx context.Context, workflow *models.Workflow) error
	// WorkflowByID returns ErrWorkflowNotFound when no row matches.
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	// UpdateWorkflow applies patch to the stored row and returns the result.
	UpdateWorkflow(ctx context.Context, id string, patch Patch) (*models.Workflow, error)
	// DeleteWorkflow reports whether a row was removed.
	DeleteWorkflow(ctx context.Context, id string) (bool, error)
	Workflows(ctx context.Context, filter ListFilter) ([]*models.Workflow, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// BlockReader is implemented by gateways that store block rows next to the
// workflow row. Callers fall back to BlockRows for gateways that do not.
type BlockReader interface {
	WorkflowBlocks(ctx context.Context, workflowID string) ([]BlockRow, error)
}

// ListFilter narrows Workflows. An empty Owner lists every workflow.
type ListFilter struct {
	Owner  string
	Limit  int
	Offset int
}

// Normalized clamps the limit into 1..MaxListLimit and the offset to >= 0.
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}

	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}

	if f.Offset < 0 {
		f.Offset = 0
	}

	return f
}

// Patch holds the workflow columns to change, keyed by their JSON names.
type Patch map[string]any

var forbiddenPatchKeys = map[string]bool{
	"id":         true,
	"user_id":    true,
	"created_at": true,
}

var patchableKeys = map[string]bool{
	"name":             true,
	"description":      true,
	"color":            true,
	"state":            true,
	"variables":        true,
	"folder_id":        true,
	"workspace_id":     true,
	"updated_at":       true,
	"last_synced":      true,
	"is_deployed":      true,
	"deployed_state":   true,
	"deployed_at":      true,
	"collaborators":    true,
	"run_count":        true,
	"last_run_at":      true,
	"is_published":     true,
	"marketplace_data": true,
}

// Validate rejects identity keys and keys that are not workflow columns.
func (p Patch) Validate() error {
	forbidden := make([]string, 0)
	unknown := make([]string, 0)

	for key := range p {
		switch {
		case forbiddenPatchKeys[key]:
			forbidden = append(forbidden, key)
		case !patchableKeys[key]:
			unknown = append(unknown, key)
		}
	}

	if len(forbidden) > 0 {
		sort.Strings(forbidden)

		return fmt.Errorf("%w: %s", ErrForbiddenPatchKey, strings.Join(forbidden, ", "))
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)

		return fmt.Errorf("%w: %s", ErrUnknownPatchKey, strings.Join(unknown, ", "))
	}

	return nil
}

// Keys returns the patched column names in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// ApplyPatch returns a copy of workflow with patch applied through the JSON form.
// The input is not modified.
func ApplyPatch(workflow *models.Workflow, patch Patch) (*models.Workflow, error) {
	err := patch.Validate()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}

	document := make(map[string]any)

	err = json.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}

	for key, value := range patch {
		document[key] = value
	}

	data, err = json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	var patched models.Workflow

	err = json.Unmarshal(data, &patched)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	patched.State.Normalize()

	return &patched, nil
}
