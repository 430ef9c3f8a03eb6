package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/services"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// editableFields are the workflow columns a client may PATCH. The gateway accepts
// more (deployment and run bookkeeping) but those belong to the runtime.
var editableFields = []string{
	"name", "description", "color", "state", "variables", "folder_id", "workspace_id",
}

type APIHandlers struct {
	orchestrator *services.Orchestrator
	validator    *validator.Validate
}

func NewAPIHandlers(orchestrator *services.Orchestrator, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		validator:    validator,
	}
}

func (h *APIHandlers) CreateFromTemplate(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Template name is required")
	}

	var req CreateFromTemplateRequest

	if len(bytes.TrimSpace(c.Body())) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	generated, err := h.orchestrator.CreateFromTemplate(c.Context(), services.CreateFromTemplateRequest{
		Name:   name,
		Params: req.Params,
		Owner:  req.Owner,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(generated.Workflow)
}

func (h *APIHandlers) CreateFromPrompt(c fiber.Ctx) error {
	var req CreateFromPromptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	options := models.DefaultStateGenerationOptions()
	if req.Options != nil {
		options = *req.Options
	}

	if err := h.validator.Struct(options); err != nil {
		return badRequest(c, err.Error())
	}

	generated, err := h.orchestrator.CreateFromPrompt(c.Context(), services.CreateFromPromptRequest{
		Prompt:  req.Prompt,
		Owner:   req.Owner,
		Options: options,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(generated.Workflow)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	filter, err := parseListFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	workflows, err := h.orchestrator.List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	filter = filter.Normalized()

	return c.JSON(ListWorkflowsResponse{
		Workflows: workflows,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
}

// parseListFilter reads owner, limit and offset. limit must be 1..100 when given.
func parseListFilter(c fiber.Ctx) (persistence.ListFilter, error) {
	filter := persistence.ListFilter{Owner: c.Query("owner")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return filter, err
		}

		if limit < 1 || limit > persistence.MaxListLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", persistence.MaxListLimit)
		}

		filter.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return filter, err
		}

		if offset < 0 {
			return filter, fmt.Errorf("offset must not be negative")
		}

		filter.Offset = offset
	}

	return filter, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.orchestrator.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var patch persistence.Patch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := patch.Validate(); err != nil {
		return handleServiceError(c, err)
	}

	for _, key := range patch.Keys() {
		if !slices.Contains(editableFields, key) {
			return badRequest(c, fmt.Sprintf("field %q cannot be updated", key))
		}
	}

	generated, err := h.orchestrator.Update(c.Context(), id, patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(generated.Workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.orchestrator.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RevalidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	report, err := h.orchestrator.Revalidate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) AnalyzeWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	pattern, err := h.orchestrator.Analyze(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(AnalyzeResponse{WorkflowID: id, Pattern: pattern})
}

func (h *APIHandlers) MarketplacePreview(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	preview, err := h.orchestrator.MarketplacePreview(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

// ExportWorkflow answers the json export document, or the yaml rendering wrapped
// in a json envelope when format=yaml.
func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	export, err := h.orchestrator.Export(c.Context(), id, c.Query("format", services.ExportFormatJSON))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(export)
}

// ValidateState validates a raw workflow state without storing anything.
func (h *APIHandlers) ValidateState(c fiber.Ctx) error {
	body := bytes.Clone(c.Body())
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest(c, "A workflow state document is required")
	}

	return c.JSON(h.orchestrator.Validate(c.Context(), body))
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	descriptors := h.orchestrator.Templates(templates.Filter{
		Category:   c.Query("category"),
		Complexity: c.Query("complexity"),
		Query:      c.Query("q"),
	})

	return c.JSON(descriptors)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	descriptor, err := h.orchestrator.Template(c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(descriptor)
}

func (h *APIHandlers) GetBlocks(c fiber.Ctx) error {
	return c.JSON(blocks.All())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	health := h.orchestrator.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if health.DatabaseOK {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(HealthResponse{Status: status, Health: health})
}
