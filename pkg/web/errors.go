package web

import (
	"errors"

	"github.com/dukex/forgestate/pkg/log"
	"github.com/dukex/forgestate/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleServiceError maps the orchestrator error kinds to HTTP responses. A rejected
// candidate answers 400 with its validation report as the body.
func handleServiceError(c fiber.Ctx, err error) error {
	if report, ok := services.ValidationReport(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(report)
	}

	switch {
	case services.IsNotFound(err):
		kind := "workflow_not_found"
		if isTemplateNotFound(err) {
			kind = "template_not_found"
		}

		return notFound(c, kind, err.Error())

	case services.IsBadRequest(err):
		return badRequest(c, err.Error())

	case services.IsUpstreamError(err):
		problem := problems.NewStatusProblem(fiber.StatusBadGateway).
			WithInstance(c.Path()).
			WithType("llm_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		log.FromContext(c.Context()).ErrorContext(c.Context(), "Request failed", "path", c.Path(), "error", err)

		kind, detail := "internal_error", "the request could not be completed"
		if services.IsPersistenceFailed(err) {
			kind, detail = "persistence_error", "the workflow store is unavailable"
		}

		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType(kind).
			WithDetail(detail)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}

func isTemplateNotFound(err error) bool {
	return errors.Is(err, services.ErrTemplateNotFound)
}
