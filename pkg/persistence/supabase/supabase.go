// Package supabase provides a workflow gateway over Supabase's PostgREST interface.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/google/uuid"
	postgrest "github.com/supabase-community/postgrest-go"
)

const (
	workflowTable = "workflow"
	blocksTable   = "workflow_blocks"

	// Stored functions installed by the postgresql migrations.
	insertFunction = "forgestate_insert_workflow"
	updateFunction = "forgestate_update_workflow"

	uniqueViolation = "23505"

	defaultTimeout = 60 * time.Second
)

var (
	_ persistence.Persistence = (*Persistence)(nil)
	_ persistence.BlockReader = (*Persistence)(nil)
)

// Persistence talks to the workflow tables through PostgREST. Writes that touch
// block rows go through stored functions so they commit in one transaction.
type Persistence struct {
	restURL    string
	serviceKey string
	transport  http.RoundTripper
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Persistence)

// WithTransport replaces the round tripper used for every request.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Persistence) { p.transport = transport }
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *Persistence) { p.timeout = timeout }
}

// NewPersistence returns a gateway for the project at projectURL authenticated with serviceKey.
func NewPersistence(logger *slog.Logger, projectURL, serviceKey string, opts ...Option) *Persistence {
	p := &Persistence{
		restURL:    strings.TrimRight(projectURL, "/") + "/rest/v1",
		serviceKey: serviceKey,
		transport:  http.DefaultTransport.(*http.Transport).Clone(),
		timeout:    defaultTimeout,
		logger:     logger.With("module", "supabase"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// contextTransport binds every request of one client to the operation's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// client builds a client for a single operation. postgrest clients keep the first
// error they hit, so they are never shared between operations.
func (p *Persistence) client(ctx context.Context) (*postgrest.Client, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)

	client := postgrest.NewClient(p.restURL, "public", nil).
		SetApiKey(p.serviceKey).
		SetAuthToken(p.serviceKey)

	if client.ClientError == nil {
		client.Transport.Parent = contextTransport{ctx: ctx, base: p.transport}
	}

	return client, cancel
}

func (p *Persistence) Close(_ context.Context) error {
	if closer, ok := p.transport.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	client, cancel := p.client(ctx)
	defer cancel()

	_, _, err := client.From(workflowTable).Select("id", "", false).Limit(1, "").Execute()
	if err != nil {
		return fmt.Errorf("failed to reach supabase: %w", err)
	}

	return nil
}

// InsertWorkflow writes the workflow row and its block rows in one stored function call.
func (p *Persistence) InsertWorkflow(ctx context.Context, workflow *models.Workflow) error {
	stored, err := p.rpc(ctx, insertFunction, map[string]any{
		"payload":    workflow,
		"block_rows": persistence.BlockRows(workflow),
	})
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && rpcErr.Code == uniqueViolation {
			return persistence.NewWorkflowError("InsertWorkflow", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return persistence.Failed("InsertWorkflow", workflow.ID, err)
	}

	if stored == nil {
		return persistence.Failed("InsertWorkflow", workflow.ID, errors.New("insert returned no row"))
	}

	return nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.get(ctx, "WorkflowByID", id)
}

// UpdateWorkflow applies the patch on top of the stored row. When the patch carries
// state, the block rows are replaced in the same stored function call.
func (p *Persistence) UpdateWorkflow(ctx context.Context, id string, patch persistence.Patch) (*models.Workflow, error) {
	err := patch.Validate()
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	current, err := p.get(ctx, "UpdateWorkflow", id)
	if err != nil {
		return nil, err
	}

	workflow, err := persistence.ApplyPatch(current, patch)
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	changes, err := patchColumns(workflow, patch)
	if err != nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, err)
	}

	args := map[string]any{"target": id, "changes": changes, "block_rows": nil}
	if _, ok := patch["state"]; ok {
		args["block_rows"] = persistence.BlockRows(workflow)
	}

	stored, err := p.rpc(ctx, updateFunction, args)
	if err != nil {
		return nil, persistence.Failed("UpdateWorkflow", id, err)
	}

	if stored == nil {
		return nil, persistence.NewWorkflowError("UpdateWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	stored.State.Normalize()

	return stored, nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	client, cancel := p.client(ctx)
	defer cancel()

	var rows []map[string]any

	_, err := client.From(workflowTable).Delete("representation", "").Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return false, persistence.Failed("DeleteWorkflow", id, err)
	}

	return len(rows) > 0, nil
}

func (p *Persistence) Workflows(ctx context.Context, filter persistence.ListFilter) ([]*models.Workflow, error) {
	filter = filter.Normalized()

	client, cancel := p.client(ctx)
	defer cancel()

	query := client.From(workflowTable).Select("*", "", false).
		Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Range(filter.Offset, filter.Offset+filter.Limit-1, "")

	if filter.Owner != "" {
		query = query.Eq("user_id", filter.Owner)
	}

	rows := make([]*models.Workflow, 0)

	_, err := query.ExecuteTo(&rows)
	if err != nil {
		return nil, persistence.Failed("Workflows", "", err)
	}

	for _, workflow := range rows {
		workflow.State.Normalize()
	}

	return rows, nil
}

// WorkflowBlocks returns the stored block rows of a workflow ordered by id.
func (p *Persistence) WorkflowBlocks(ctx context.Context, workflowID string) ([]persistence.BlockRow, error) {
	rows := make([]persistence.BlockRow, 0)

	if _, err := uuid.Parse(workflowID); err != nil {
		return rows, nil
	}

	client, cancel := p.client(ctx)
	defer cancel()

	_, err := client.From(blocksTable).Select("*", "", false).
		Eq("workflow_id", workflowID).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, persistence.Failed("WorkflowBlocks", workflowID, err)
	}

	return rows, nil
}

func (p *Persistence) get(ctx context.Context, op, id string) (*models.Workflow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	client, cancel := p.client(ctx)
	defer cancel()

	var rows []*models.Workflow

	_, err := client.From(workflowTable).Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, persistence.Failed(op, id, err)
	}

	if len(rows) == 0 {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	rows[0].State.Normalize()

	return rows[0], nil
}

// rpcError is the PostgREST error body returned by a failed function call.
type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

// rpc calls a stored function that returns a workflow row, or null when nothing matched.
func (p *Persistence) rpc(ctx context.Context, function string, args map[string]any) (*models.Workflow, error) {
	client, cancel := p.client(ctx)
	defer cancel()

	p.logger.DebugContext(ctx, "PostgREST function call", "function", function)

	body := strings.TrimSpace(client.Rpc(function, "", args))
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to call %s: %w", function, client.ClientError)
	}

	if body == "" || body == "null" {
		return nil, nil
	}

	var document map[string]json.RawMessage

	err := json.Unmarshal([]byte(body), &document)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", function, err)
	}

	if _, ok := document["id"]; !ok {
		rpcErr := &rpcError{}
		if json.Unmarshal([]byte(body), rpcErr) != nil || rpcErr.Message == "" {
			rpcErr.Message = body
		}

		return nil, rpcErr
	}

	var workflow models.Workflow

	err = json.Unmarshal([]byte(body), &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", function, err)
	}

	return &workflow, nil
}

// patchColumns takes the patched keys from the already patched workflow so the
// values sent are the decoded, normalized ones.
func patchColumns(workflow *models.Workflow, patch persistence.Patch) (map[string]any, error) {
	data, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}

	document := make(map[string]any)

	err = json.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}

	columns := make(map[string]any, len(patch))
	for _, key := range patch.Keys() {
		columns[key] = document[key]
	}

	return columns, nil
}
