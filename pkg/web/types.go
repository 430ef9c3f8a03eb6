// Package web provides the HTTP handlers of the workflow state generator API.
package web

import (
	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/services"
)

// CreateFromTemplateRequest is the body of POST /api/workflows/from-template/{name}.
type CreateFromTemplateRequest struct {
	Params map[string]any `json:"params"`
	Owner  string         `json:"owner"  validate:"omitempty,max=255"`
}

// CreateFromPromptRequest is the body of POST /api/workflows/from-prompt. Missing
// options take their defaults.
type CreateFromPromptRequest struct {
	Prompt  string                         `json:"prompt"  validate:"required,min=3,max=8000"`
	Owner   string                         `json:"owner"   validate:"omitempty,max=255"`
	Options *models.StateGenerationOptions `json:"options"`
}

// ListWorkflowsResponse is the body of GET /api/workflows.
type ListWorkflowsResponse struct {
	Workflows []*models.Workflow `json:"workflows"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// AnalyzeResponse is the body of POST /api/workflows/{id}/analyze.
type AnalyzeResponse struct {
	WorkflowID string         `json:"workflow_id"`
	Pattern    models.Pattern `json:"pattern"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	services.Health
}
