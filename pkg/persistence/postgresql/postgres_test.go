package postgresql_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/persistence/postgresql"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_blocks", "workflow", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("forgestate_test"),
			postgres.WithUsername("forgestate"),
			postgres.WithPassword("forgestate"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL, postgresql.WithSQLEcho(true))
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func tradingWorkflow(t *testing.T, owner string) *models.Workflow {
	t.Helper()

	workflow, err := templates.Default().Instantiate("trading_bot", nil)
	require.NoError(t, err)

	workflow.UserID = owner

	return workflow
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflow", "workflow_blocks", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestPersistence_InsertAndGet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := tradingWorkflow(t, "user-1")
	description := "Monitors ETH/USD"
	workflow.Description = &description

	err := p.InsertWorkflow(ctx, workflow)
	require.NoError(t, err)

	retrieved, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, retrieved.ID)
	assert.Equal(t, "user-1", retrieved.UserID)
	assert.Equal(t, models.DefaultColor, retrieved.Color)
	require.NotNil(t, retrieved.Description)
	assert.Equal(t, description, *retrieved.Description)
	assert.Equal(t, time.UTC, retrieved.CreatedAt.Location())
	assert.True(t, workflow.CreatedAt.Equal(retrieved.CreatedAt))
	assert.Len(t, retrieved.State.Blocks, len(workflow.State.Blocks))
	assert.Equal(t, workflow.State.Edges, retrieved.State.Edges)
	assert.Equal(t, workflow.State.Metadata, retrieved.State.Metadata)
	assert.Equal(t, []string{}, retrieved.Collaborators)

	blocks, err := p.WorkflowRepository().Blocks(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, persistence.BlockRows(workflow)[0].ID, blocks[0].ID)
	assert.Len(t, blocks, len(workflow.State.Blocks))

	for _, row := range blocks {
		block := workflow.State.Blocks[row.ID]
		require.NotNil(t, block, row.ID)
		assert.Equal(t, block.Type, row.Type)
		assert.InDelta(t, block.Position.X, row.PositionX, 0.0001)
		assert.Equal(t, workflow.ID, row.WorkflowID)
	}
}

func TestPersistence_InsertDuplicate(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := tradingWorkflow(t, "user-1")
	require.NoError(t, p.InsertWorkflow(ctx, workflow))

	err := p.InsertWorkflow(ctx, workflow)
	assert.True(t, persistence.IsWorkflowAlreadyExists(err))
}

func TestPersistence_GetMissing(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.WorkflowByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = p.WorkflowByID(ctx, "not-a-uuid")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_Update(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := tradingWorkflow(t, "user-1")
	require.NoError(t, p.InsertWorkflow(ctx, workflow))

	state := workflow.State
	delete(state.Blocks, "output_1")

	edges := make([]models.Edge, 0, len(state.Edges))
	for _, edge := range state.Edges {
		if edge.Target != "output_1" {
			edges = append(edges, edge)
		}
	}

	state.Edges = edges
	later := workflow.UpdatedAt.Add(time.Minute)

	updated, err := p.UpdateWorkflow(ctx, workflow.ID, persistence.Patch{
		"name":       "Renamed",
		"state":      state,
		"updated_at": later,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, later.Equal(updated.UpdatedAt))
	assert.True(t, workflow.CreatedAt.Equal(updated.CreatedAt))

	retrieved, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", retrieved.Name)
	assert.NotContains(t, retrieved.State.Blocks, "output_1")

	blocks, err := p.WorkflowRepository().Blocks(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, len(state.Blocks))
}

func TestPersistence_UpdateRejects(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := tradingWorkflow(t, "user-1")
	require.NoError(t, p.InsertWorkflow(ctx, workflow))

	_, err := p.UpdateWorkflow(ctx, workflow.ID, persistence.Patch{"user_id": "mallory"})
	assert.ErrorIs(t, err, persistence.ErrForbiddenPatchKey)

	_, err = p.UpdateWorkflow(ctx, uuid.NewString(), persistence.Patch{"name": "x"})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_DeleteAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := tradingWorkflow(t, "user-1")
	second := tradingWorkflow(t, "user-1")
	other := tradingWorkflow(t, "user-2")

	for _, workflow := range []*models.Workflow{first, second, other} {
		require.NoError(t, p.InsertWorkflow(ctx, workflow))
	}

	owned, err := p.Workflows(ctx, persistence.ListFilter{Owner: "user-1"})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	all, err := p.Workflows(ctx, persistence.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	deleted, err := p.DeleteWorkflow(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = p.DeleteWorkflow(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	blocks, err := p.WorkflowRepository().Blocks(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	owned, err = p.Workflows(ctx, persistence.ListFilter{Owner: "user-1"})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, second.ID, owned[0].ID)
}

func TestWriteFunctions_AreAtomic(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	workflow := tradingWorkflow(t, "user-1")
	payload, err := json.Marshal(workflow)
	require.NoError(t, err)

	blocks, err := json.Marshal(persistence.BlockRows(workflow))
	require.NoError(t, err)

	t.Run("failing block row leaves no workflow row", func(t *testing.T) {
		broken := `[{"workflow_id": "` + workflow.ID + `", "id": "agent_1", "type": "agent"}]`

		_, err := db.ExecContext(ctx, "SELECT forgestate_insert_workflow($1::jsonb, $2::jsonb)", string(payload), broken)
		require.Error(t, err)

		var count int

		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow WHERE id = $1", workflow.ID).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("insert writes workflow and blocks", func(t *testing.T) {
		var stored []byte

		err := db.QueryRowContext(ctx, "SELECT forgestate_insert_workflow($1::jsonb, $2::jsonb)",
			string(payload), string(blocks)).Scan(&stored)
		require.NoError(t, err)

		var returned models.Workflow
		require.NoError(t, json.Unmarshal(stored, &returned))
		assert.Equal(t, workflow.ID, returned.ID)
		assert.Equal(t, workflow.Name, returned.Name)

		var count int

		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_blocks WHERE workflow_id = $1", workflow.ID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, len(workflow.State.Blocks), count)
	})

	t.Run("failing update keeps previous block rows", func(t *testing.T) {
		broken := `[{"id": "agent_1", "type": "agent"}]`

		_, err := db.ExecContext(ctx, "SELECT forgestate_update_workflow($1::uuid, $2::jsonb, $3::jsonb)",
			workflow.ID, `{"name": "Renamed"}`, broken)
		require.Error(t, err)

		var name string

		err = db.QueryRowContext(ctx, "SELECT name FROM workflow WHERE id = $1", workflow.ID).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, name)

		var count int

		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_blocks WHERE workflow_id = $1", workflow.ID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, len(workflow.State.Blocks), count)
	})

	t.Run("update of missing workflow returns null", func(t *testing.T) {
		var stored sql.NullString

		err := db.QueryRowContext(ctx, "SELECT forgestate_update_workflow($1::uuid, $2::jsonb)",
			uuid.NewString(), `{"name": "x"}`).Scan(&stored)
		require.NoError(t, err)
		assert.False(t, stored.Valid)
	})
}
