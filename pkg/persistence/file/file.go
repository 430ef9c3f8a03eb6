// Package file provides a file-based workflow gateway for local development.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
)

var _ persistence.Persistence = (*Persistence)(nil)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
}

// NewPersistence stores workflows under root/workflows. A file:// prefix is stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck creates the storage directory if needed and checks it is writable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	dir := fp.workflowRepo.dir()

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	marker, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("workflows directory is not writable: %w", err)
	}

	_ = marker.Close()

	return os.Remove(marker.Name())
}

func (fp *Persistence) InsertWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Insert(ctx, workflow)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) UpdateWorkflow(ctx context.Context, id string, patch persistence.Patch) (*models.Workflow, error) {
	return fp.workflowRepo.Update(ctx, id, patch)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	return fp.workflowRepo.Delete(ctx, id)
}

func (fp *Persistence) Workflows(ctx context.Context, filter persistence.ListFilter) ([]*models.Workflow, error) {
	return fp.workflowRepo.List(ctx, filter)
}
