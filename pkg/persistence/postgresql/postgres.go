// Package postgresql provides the PostgreSQL workflow gateway.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

var _ persistence.Persistence = (*Persistence)(nil)
var _ persistence.BlockReader = (*Persistence)(nil)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
}

type config struct {
	echo bool
}

type Option func(*config)

// WithSQLEcho logs every statement at debug level.
func WithSQLEcho(enabled bool) Option {
	return func(c *config) { c.echo = enabled }
}

// NewPersistence connects to databaseURL, pings it and brings the schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string, opts ...Option) (*Persistence, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger, cfg.echo),
	}, nil
}

// WorkflowRepository exposes the repository for callers that need block rows.
func (p *Persistence) WorkflowRepository() *WorkflowRepository {
	return p.workflowRepo
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) InsertWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Insert(ctx, workflow)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) UpdateWorkflow(ctx context.Context, id string, patch persistence.Patch) (*models.Workflow, error) {
	return p.workflowRepo.Update(ctx, id, patch)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	return p.workflowRepo.Delete(ctx, id)
}

func (p *Persistence) Workflows(ctx context.Context, filter persistence.ListFilter) ([]*models.Workflow, error) {
	return p.workflowRepo.List(ctx, filter)
}

func (p *Persistence) WorkflowBlocks(ctx context.Context, workflowID string) ([]persistence.BlockRow, error) {
	rows, err := p.workflowRepo.Blocks(ctx, workflowID)
	if err != nil {
		return nil, persistence.Failed("WorkflowBlocks", workflowID, err)
	}

	return rows, nil
}
