package web

import "github.com/gofiber/fiber/v3"

// Register mounts the workflow, template and catalog endpoints under /api and the
// combined health check at /health.
func (h *APIHandlers) Register(app *fiber.App) {
	api := app.Group("/api")

	w := api.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/from-template/:name", h.CreateFromTemplate)
	w.Post("/from-prompt", h.CreateFromPrompt)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/revalidate", h.RevalidateWorkflow)
	w.Post("/:id/analyze", h.AnalyzeWorkflow)
	w.Get("/:id/marketplace-preview", h.MarketplacePreview)
	w.Get("/:id/export", h.ExportWorkflow)

	api.Post("/validate", h.ValidateState)
	api.Get("/templates", h.GetTemplates)
	api.Get("/templates/:name", h.GetTemplate)
	api.Get("/blocks", h.GetBlocks)

	app.Get("/health", h.HealthCheck)
}
