// Package models provides the Agent Forge workflow-state document types.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	// DefaultColor is the color the Agent Forge editor assigns to new workflows.
	DefaultColor = "#3972F6"

	// DefaultStateVersion is the metadata version written into new states.
	DefaultStateVersion = "1.0.0"

	// TimestampLayout is the ISO-8601 form used for metadata timestamps.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// Workflow is the persisted Agent Forge workflow row.
type Workflow struct {
	ID              string         `json:"id"                         validate:"required,uuid"`
	UserID          string         `json:"user_id"                    validate:"required"`
	WorkspaceID     *string        `json:"workspace_id,omitempty"`
	FolderID        *string        `json:"folder_id,omitempty"`
	Name            string         `json:"name"                       validate:"required"`
	Description     *string        `json:"description,omitempty"`
	State           WorkflowState  `json:"state"`
	Color           string         `json:"color"                      validate:"required"`
	LastSynced      time.Time      `json:"last_synced"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	IsDeployed      bool           `json:"is_deployed"`
	DeployedState   *WorkflowState `json:"deployed_state,omitempty"`
	DeployedAt      *time.Time     `json:"deployed_at,omitempty"`
	Collaborators   []string       `json:"collaborators"`
	RunCount        int            `json:"run_count"                  validate:"min=0"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
	Variables       map[string]any `json:"variables"`
	IsPublished     bool           `json:"is_published"`
	MarketplaceData map[string]any `json:"marketplace_data,omitempty"`
}

// WorkflowState is the graph document the Agent Forge runtime executes.
type WorkflowState struct {
	Blocks    map[string]*Block `json:"blocks"`
	Edges     []Edge            `json:"edges"`
	Subflows  map[string]any    `json:"subflows"`
	Variables map[string]any    `json:"variables"`
	Metadata  Metadata          `json:"metadata"`
}

// Metadata carries the state version and its ISO-8601 timestamps. On the wire the
// timestamps are camelCase; snake_case keys are accepted when decoding.
type Metadata struct {
	Version     string `json:"version"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	Pattern     string `json:"pattern,omitempty"`
	GeneratedBy string `json:"generatedBy,omitempty"`
}

type metadataWire struct {
	Version     string `json:"version"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	Pattern     string `json:"pattern,omitempty"`
	GeneratedBy string `json:"generatedBy,omitempty"`

	SnakeCreatedAt string `json:"created_at,omitempty"`
	SnakeUpdatedAt string `json:"updated_at,omitempty"`
}

// UnmarshalJSON accepts both createdAt/updatedAt and created_at/updated_at.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var wire metadataWire

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return err
	}

	m.Version = wire.Version
	m.Pattern = wire.Pattern
	m.GeneratedBy = wire.GeneratedBy

	m.CreatedAt = wire.CreatedAt
	if m.CreatedAt == "" {
		m.CreatedAt = wire.SnakeCreatedAt
	}

	m.UpdatedAt = wire.UpdatedAt
	if m.UpdatedAt == "" {
		m.UpdatedAt = wire.SnakeUpdatedAt
	}

	return nil
}

// NewWorkflowState returns an empty state stamped with the given time.
func NewWorkflowState(now time.Time) WorkflowState {
	stamp := FormatTimestamp(now)

	return WorkflowState{
		Blocks:    make(map[string]*Block),
		Edges:     make([]Edge, 0),
		Subflows:  make(map[string]any),
		Variables: make(map[string]any),
		Metadata: Metadata{
			Version:   DefaultStateVersion,
			CreatedAt: stamp,
			UpdatedAt: stamp,
		},
	}
}

// Normalize replaces nil containers with empty ones so the state always
// serializes with {} and [] instead of null.
func (s *WorkflowState) Normalize() {
	if s.Blocks == nil {
		s.Blocks = make(map[string]*Block)
	}

	if s.Edges == nil {
		s.Edges = make([]Edge, 0)
	}

	if s.Subflows == nil {
		s.Subflows = make(map[string]any)
	}

	if s.Variables == nil {
		s.Variables = make(map[string]any)
	}

	for _, block := range s.Blocks {
		if block == nil {
			continue
		}

		if block.SubBlocks == nil {
			block.SubBlocks = make(map[string]SubBlock)
		}

		if block.Outputs == nil {
			block.Outputs = make(map[string]any)
		}
	}
}

// Clone returns a deep copy of the state through its JSON form.
func (s *WorkflowState) Clone() (*WorkflowState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	var clone WorkflowState

	err = json.Unmarshal(data, &clone)
	if err != nil {
		return nil, err
	}

	return &clone, nil
}

// BlocksOfType returns the ids of blocks with the given type.
func (s *WorkflowState) BlocksOfType(blockType string) []string {
	ids := make([]string, 0)

	for id, block := range s.Blocks {
		if block != nil && block.Type == blockType {
			ids = append(ids, id)
		}
	}

	return ids
}

// Touch stamps updated_at on the workflow and its state metadata.
func (w *Workflow) Touch(now time.Time) {
	now = now.UTC().Truncate(time.Microsecond)

	w.UpdatedAt = now
	w.State.Metadata.UpdatedAt = FormatTimestamp(now)
}

// NewWorkflow returns a workflow with the defaults applied by the Agent Forge editor.
func NewWorkflow(id, userID, name string, now time.Time) *Workflow {
	now = now.UTC().Truncate(time.Microsecond)

	return &Workflow{
		ID:            id,
		UserID:        userID,
		Name:          name,
		State:         NewWorkflowState(now),
		Color:         DefaultColor,
		LastSynced:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
		Collaborators: make([]string, 0),
		Variables:     make(map[string]any),
	}
}

// FormatTimestamp renders t in UTC with millisecond precision and a trailing Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp with an explicit offset.
func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

// CanonicalJSON encodes v with sorted map keys and no HTML escaping.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
