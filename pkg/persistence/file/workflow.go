package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository keeps one JSON file per workflow.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// path returns false for ids that cannot name a workflow file.
func (wr *WorkflowRepository) path(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}

	return filepath.Join(wr.dir(), strings.ToLower(id)+".json"), true
}

// Insert refuses to overwrite an existing workflow.
func (wr *WorkflowRepository) Insert(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	filePath, ok := wr.path(workflow.ID)
	if !ok {
		return persistence.NewWorkflowError("InsertWorkflow", workflow.ID, fmt.Errorf("invalid workflow id %q", workflow.ID))
	}

	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewWorkflowError("InsertWorkflow", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	err := wr.write(filePath, workflow)
	if err != nil {
		return persistence.Failed("InsertWorkflow", workflow.ID, err)
	}

	return nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	return wr.read("WorkflowByID", id)
}

func (wr *WorkflowRepository) Update(_ context.Context, id string, patch persistence.Patch) (*models.Workflow, error) {
	err := patch.Validate()
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	current, err := wr.read("UpdateWorkflow", id)
	if err != nil {
		return nil, err
	}

	workflow, err := persistence.ApplyPatch(current, patch)
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	filePath, _ := wr.path(id)

	err = wr.write(filePath, workflow)
	if err != nil {
		return nil, persistence.Failed("UpdateWorkflow", id, err)
	}

	return workflow, nil
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) (bool, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	filePath, ok := wr.path(id)
	if !ok {
		return false, nil
	}

	err := os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, persistence.Failed("DeleteWorkflow", id, fmt.Errorf("failed to delete workflow %s: %w", id, err))
	}

	return true, nil
}

// List loads every workflow file, filters by owner and pages the result newest first.
func (wr *WorkflowRepository) List(_ context.Context, filter persistence.ListFilter) ([]*models.Workflow, error) {
	filter = filter.Normalized()

	wr.mu.RLock()
	defer wr.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, persistence.Failed("Workflows", "", fmt.Errorf("failed to list workflow files: %w", err))
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflow, err := wr.read("Workflows", strings.TrimSuffix(file, ".json"))
		if persistence.IsWorkflowNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		if filter.Owner != "" && workflow.UserID != filter.Owner {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		if !workflows[i].UpdatedAt.Equal(workflows[j].UpdatedAt) {
			return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
		}

		return workflows[i].ID < workflows[j].ID
	})

	if filter.Offset >= len(workflows) {
		return make([]*models.Workflow, 0), nil
	}

	end := min(filter.Offset+filter.Limit, len(workflows))

	return workflows[filter.Offset:end], nil
}

func (wr *WorkflowRepository) read(op, id string) (*models.Workflow, error) {
	filePath, ok := wr.path(id)
	if !ok {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.Failed(op, id, fmt.Errorf("failed to fetch workflow %s: %w", id, err))
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, persistence.Failed(op, id, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err))
	}

	workflow.State.Normalize()

	return &workflow, nil
}

// write replaces the file through a rename so readers never see a partial document.
func (wr *WorkflowRepository) write(filePath string, workflow *models.Workflow) error {
	err := os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	tmp, err := os.CreateTemp(wr.dir(), ".workflow-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = tmp.Write(data)
	closeErr := tmp.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	err = os.Rename(tmp.Name(), filePath)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to store workflow %s: %w", workflow.ID, err)
	}

	return nil
}
