//go:build integration

package web_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence/postgresql"
	"github.com/dukex/forgestate/pkg/services"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/dukex/forgestate/pkg/validation"
	"github.com/dukex/forgestate/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgresApp(t *testing.T) *fiber.App {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("forgestate_web"),
		postgres.WithUsername("forgestate"),
		postgres.WithPassword("forgestate"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := testcontainers.TerminateContainer(container)
		if err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	gateway, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := gateway.Close(context.Background())
		if err != nil {
			t.Logf("Failed to close persistence: %v", err)
		}
	})

	orchestrator := services.NewOrchestrator(
		logger,
		templates.Default(),
		nil,
		nil,
		validation.Default(logger),
		gateway,
	)

	app := fiber.New()
	web.NewAPIHandlers(orchestrator, validator.New(validator.WithRequiredStructEnabled())).Register(app)

	return app
}

func TestIntegration_TemplateWorkflowLifecycle(t *testing.T) {
	app := setupPostgresApp(t)

	workflow := createFromTemplate(t, app, "trading_bot", map[string]any{"trading_pair": "SOL/USD"})
	assert.Equal(t, "Trading Bot - SOL/USD", workflow.Name)

	resp, body := doRequest(t, app, http.MethodGet, "/api/workflows/"+workflow.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Workflow
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, workflow.ID, stored.ID)
	assert.Len(t, stored.State.Blocks, len(workflow.State.Blocks))
	assert.Equal(t, workflow.State.Edges, stored.State.Edges)

	resp, body = doRequest(t, app, http.MethodPatch, "/api/workflows/"+workflow.ID,
		`{"description": "Swing trading on SOL", "color": "#2563EB"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "#2563EB", updated.Color)
	assert.False(t, updated.UpdatedAt.Before(workflow.UpdatedAt))

	resp, body = doRequest(t, app, http.MethodGet, "/api/workflows/"+workflow.ID+"/marketplace-preview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var preview services.MarketplacePreview
	require.NoError(t, json.Unmarshal(body, &preview))
	assert.Equal(t, len(workflow.State.Blocks), preview.Stats.TotalBlocks, "stats come from the stored block rows")
	assert.Contains(t, preview.Categories, "Trading Bots")

	resp, body = doRequest(t, app, http.MethodGet, "/api/workflows?owner=user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list web.ListWorkflowsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Workflows, 1)

	resp, _ = doRequest(t, app, http.MethodDelete, "/api/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/api/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/api/workflows/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_PromptWithoutProvider(t *testing.T) {
	app := setupPostgresApp(t)

	resp, body := doRequest(t, app, http.MethodPost, "/api/workflows/from-prompt", `{"prompt": "Watch ETH gas fees"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "llm_error")

	resp, body = doRequest(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"database_ok":true`)
}
