package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

const (
	uniqueViolation     = "23505"
	invalidTextEncoding = "22P02"
)

const workflowColumns = `
	id
  , user_id
  , workspace_id
  , folder_id
  , name
  , description
  , state
  , color
  , last_synced
  , created_at
  , updated_at
  , is_deployed
  , deployed_state
  , deployed_at
  , collaborators
  , run_count
  , last_run_at
  , variables
  , is_published
  , marketplace_data
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	exec   *sqlbase.Echo
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository. With echo set every
// statement is logged at debug level.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger, echo bool) *WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		exec:   sqlbase.NewEcho(db, logger, echo),
		logger: logger,
	}
}

// Insert writes the workflow row and its block rows in one transaction.
func (r *WorkflowRepository) Insert(ctx context.Context, workflow *models.Workflow) (err error) {
	workflow.CreatedAt = workflow.CreatedAt.UTC().Truncate(time.Microsecond)
	workflow.UpdatedAt = workflow.UpdatedAt.UTC().Truncate(time.Microsecond)
	workflow.LastSynced = workflow.LastSynced.UTC().Truncate(time.Microsecond)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.Failed("InsertWorkflow", workflow.ID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exec := r.exec.On(tx)

	args, err := workflowArgs(workflow)
	if err != nil {
		return persistence.NewWorkflowError("InsertWorkflow", workflow.ID, err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO workflow (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewWorkflowError("InsertWorkflow", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return persistence.Failed("InsertWorkflow", workflow.ID, fmt.Errorf("failed to insert workflow: %w", err))
	}

	err = r.insertBlocks(ctx, exec, workflow)
	if err != nil {
		return persistence.Failed("InsertWorkflow", workflow.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.Failed("InsertWorkflow", workflow.ID, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// GetByID returns persistence.ErrWorkflowNotFound when no row matches.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflow WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		return nil, r.readError("WorkflowByID", id, err)
	}

	return workflow, nil
}

// Update locks the row, applies the patch and rewrites the block rows when the state changes.
func (r *WorkflowRepository) Update(ctx context.Context, id string, patch persistence.Patch) (_ *models.Workflow, err error) {
	err = patch.Validate()
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence.Failed("UpdateWorkflow", id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exec := r.exec.On(tx)

	current, err := scanWorkflow(exec.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflow WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, r.readError("UpdateWorkflow", id, err)
	}

	workflow, err := persistence.ApplyPatch(current, patch)
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	workflow.UpdatedAt = workflow.UpdatedAt.UTC().Truncate(time.Microsecond)
	workflow.LastSynced = workflow.LastSynced.UTC().Truncate(time.Microsecond)

	args, err := workflowArgs(workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	_, err = exec.ExecContext(ctx, `
		UPDATE workflow SET
			workspace_id = $3,
			folder_id = $4,
			name = $5,
			description = $6,
			state = $7,
			color = $8,
			last_synced = $9,
			updated_at = $11,
			is_deployed = $12,
			deployed_state = $13,
			deployed_at = $14,
			collaborators = $15,
			run_count = $16,
			last_run_at = $17,
			variables = $18,
			is_published = $19,
			marketplace_data = $20
		WHERE id = $1 AND user_id = $2 AND created_at = $10
	`, args...)
	if err != nil {
		return nil, persistence.Failed("UpdateWorkflow", id, fmt.Errorf("failed to update workflow: %w", err))
	}

	if _, ok := patch["state"]; ok {
		_, err = exec.ExecContext(ctx, "DELETE FROM workflow_blocks WHERE workflow_id = $1", id)
		if err != nil {
			return nil, persistence.Failed("UpdateWorkflow", id, fmt.Errorf("failed to delete block rows: %w", err))
		}

		err = r.insertBlocks(ctx, exec, workflow)
		if err != nil {
			return nil, persistence.Failed("UpdateWorkflow", id, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, persistence.Failed("UpdateWorkflow", id, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return workflow, nil
}

// Delete removes the workflow; block rows go with it through the foreign key.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM workflow WHERE id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return false, nil
		}

		return false, persistence.Failed("DeleteWorkflow", id, fmt.Errorf("failed to delete workflow: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.Failed("DeleteWorkflow", id, fmt.Errorf("failed to get rows affected: %w", err))
	}

	return rowsAffected > 0, nil
}

// List returns workflows newest first.
func (r *WorkflowRepository) List(ctx context.Context, filter persistence.ListFilter) ([]*models.Workflow, error) {
	filter = filter.Normalized()

	rows, err := r.exec.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflow
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY updated_at DESC, id
		LIMIT $2 OFFSET $3
	`, filter.Owner, filter.Limit, filter.Offset)
	if err != nil {
		return nil, persistence.Failed("Workflows", "", fmt.Errorf("failed to query workflows: %w", err))
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.Failed("Workflows", "", fmt.Errorf("failed to scan workflow: %w", err))
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.Failed("Workflows", "", fmt.Errorf("error iterating workflows: %w", err))
	}

	return workflows, nil
}

// Blocks returns the block rows of a workflow ordered by id.
func (r *WorkflowRepository) Blocks(ctx context.Context, workflowID string) ([]persistence.BlockRow, error) {
	rows, err := r.exec.QueryContext(ctx, `
		SELECT id, workflow_id, type, name, position_x, position_y, enabled, horizontal_handles,
			is_wide, advanced_mode, height, sub_blocks, outputs, data, parent_id, extent, created_at, updated_at
		FROM workflow_blocks
		WHERE workflow_id = $1
		ORDER BY id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow blocks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	blocks := make([]persistence.BlockRow, 0)

	for rows.Next() {
		var (
			block                                 persistence.BlockRow
			subBlocksJSON, outputsJSON, dataJSON []byte
			parentID, extent                     sql.NullString
		)

		err := rows.Scan(
			&block.ID,
			&block.WorkflowID,
			&block.Type,
			&block.Name,
			&block.PositionX,
			&block.PositionY,
			&block.Enabled,
			&block.HorizontalHandles,
			&block.IsWide,
			&block.AdvancedMode,
			&block.Height,
			&subBlocksJSON,
			&outputsJSON,
			&dataJSON,
			&parentID,
			&extent,
			&block.CreatedAt,
			&block.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}

		err = unmarshalColumns(map[string]columnTarget{
			"sub_blocks": {subBlocksJSON, &block.SubBlocks},
			"outputs":    {outputsJSON, &block.Outputs},
			"data":       {dataJSON, &block.Data},
		})
		if err != nil {
			return nil, err
		}

		block.ParentID = nullString(parentID)
		block.Extent = nullString(extent)
		block.CreatedAt = block.CreatedAt.UTC()
		block.UpdatedAt = block.UpdatedAt.UTC()

		blocks = append(blocks, block)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}

	return blocks, nil
}

func (r *WorkflowRepository) insertBlocks(ctx context.Context, exec sqlbase.Execer, workflow *models.Workflow) error {
	for _, block := range persistence.BlockRows(workflow) {
		subBlocksJSON, err := json.Marshal(block.SubBlocks)
		if err != nil {
			return fmt.Errorf("failed to marshal sub-blocks of %s: %w", block.ID, err)
		}

		outputsJSON, err := json.Marshal(block.Outputs)
		if err != nil {
			return fmt.Errorf("failed to marshal outputs of %s: %w", block.ID, err)
		}

		dataJSON, err := nullableJSON(block.Data, len(block.Data) == 0)
		if err != nil {
			return fmt.Errorf("failed to marshal data of %s: %w", block.ID, err)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO workflow_blocks (workflow_id, id, type, name, position_x, position_y, enabled,
				horizontal_handles, is_wide, advanced_mode, height, sub_blocks, outputs, data, parent_id,
				extent, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`,
			block.WorkflowID,
			block.ID,
			block.Type,
			block.Name,
			block.PositionX,
			block.PositionY,
			block.Enabled,
			block.HorizontalHandles,
			block.IsWide,
			block.AdvancedMode,
			block.Height,
			subBlocksJSON,
			outputsJSON,
			dataJSON,
			block.ParentID,
			block.Extent,
			block.CreatedAt,
			block.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert block %s: %w", block.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) readError(op, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	r.logger.Error("Failed to read workflow", "op", op, "workflow_id", id, "error", err)

	return persistence.Failed(op, id, err)
}

// isInvalidID matches ids Postgres cannot parse as a UUID; such ids can never exist.
func isInvalidID(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == invalidTextEncoding
}

func workflowArgs(workflow *models.Workflow) ([]any, error) {
	stateJSON, err := json.Marshal(workflow.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	deployedStateJSON, err := nullableJSON(workflow.DeployedState, workflow.DeployedState == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deployed state: %w", err)
	}

	collaborators := workflow.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}

	collaboratorsJSON, err := json.Marshal(collaborators)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collaborators: %w", err)
	}

	variables := workflow.Variables
	if variables == nil {
		variables = map[string]any{}
	}

	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	marketplaceJSON, err := nullableJSON(workflow.MarketplaceData, workflow.MarketplaceData == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal marketplace data: %w", err)
	}

	return []any{
		workflow.ID,
		workflow.UserID,
		workflow.WorkspaceID,
		workflow.FolderID,
		workflow.Name,
		workflow.Description,
		stateJSON,
		workflow.Color,
		workflow.LastSynced,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.IsDeployed,
		deployedStateJSON,
		workflow.DeployedAt,
		collaboratorsJSON,
		workflow.RunCount,
		workflow.LastRunAt,
		variablesJSON,
		workflow.IsPublished,
		marketplaceJSON,
	}, nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
},
) (*models.Workflow, error) {
	var (
		workflow                                      models.Workflow
		workspaceID, folderID, description            sql.NullString
		deployedAt, lastRunAt                         sql.NullTime
		stateJSON, deployedStateJSON                  []byte
		collaboratorsJSON, variablesJSON, marketplace []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.UserID,
		&workspaceID,
		&folderID,
		&workflow.Name,
		&description,
		&stateJSON,
		&workflow.Color,
		&workflow.LastSynced,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.IsDeployed,
		&deployedStateJSON,
		&deployedAt,
		&collaboratorsJSON,
		&workflow.RunCount,
		&lastRunAt,
		&variablesJSON,
		&workflow.IsPublished,
		&marketplace,
	)
	if err != nil {
		return nil, err
	}

	err = unmarshalColumns(map[string]columnTarget{
		"state":            {stateJSON, &workflow.State},
		"deployed_state":   {deployedStateJSON, &workflow.DeployedState},
		"collaborators":    {collaboratorsJSON, &workflow.Collaborators},
		"variables":        {variablesJSON, &workflow.Variables},
		"marketplace_data": {marketplace, &workflow.MarketplaceData},
	})
	if err != nil {
		return nil, err
	}

	workflow.WorkspaceID = nullString(workspaceID)
	workflow.FolderID = nullString(folderID)
	workflow.Description = nullString(description)
	workflow.DeployedAt = nullTime(deployedAt)
	workflow.LastRunAt = nullTime(lastRunAt)
	workflow.LastSynced = workflow.LastSynced.UTC()
	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	if workflow.Collaborators == nil {
		workflow.Collaborators = []string{}
	}

	if workflow.Variables == nil {
		workflow.Variables = map[string]any{}
	}

	workflow.State.Normalize()

	return &workflow, nil
}

type columnTarget struct {
	data   []byte
	target any
}

func unmarshalColumns(columns map[string]columnTarget) error {
	for name, column := range columns {
		if column.data == nil {
			continue
		}

		err := json.Unmarshal(column.data, column.target)
		if err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", name, err)
		}
	}

	return nil
}

func nullableJSON(value any, isNull bool) ([]byte, error) {
	if isNull {
		return nil, nil
	}

	return json.Marshal(value)
}

func nullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}

	return &value.String
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}

	t := value.Time.UTC()

	return &t
}
