// Package main provides the forgestate API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/forgestate/pkg/eventbus"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/services"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/dukex/forgestate/pkg/validation"
	"github.com/dukex/forgestate/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger       *slog.Logger
	orchestrator *services.Orchestrator
	validate     *validator.Validate
	activity     *ActivityRecorder
}

func NewAPI(
	logger *slog.Logger,
	library *templates.Library,
	generator services.Generator,
	classifier services.PatternClassifier,
	pipeline *validation.Pipeline,
	persistence persistence.Persistence,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
) *API {
	opts := []services.Option{}
	if eventBus != nil {
		opts = append(opts, services.WithPublisher(eventBus))
	}

	if tracer != nil {
		opts = append(opts, services.WithTracer(tracer))
	}

	return &API{
		logger:       logger,
		orchestrator: services.NewOrchestrator(logger, library, generator, classifier, pipeline, persistence, opts...),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// TrackActivity exposes the recorder's counters on /activity.
func (a *API) TrackActivity(recorder *ActivityRecorder) {
	a.activity = recorder
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.orchestrator, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Agent Forge workflow state generator")
	})

	if a.activity != nil {
		app.Get("/activity", func(c fiber.Ctx) error {
			return c.JSON(a.activity.Snapshot())
		})
	}

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting API server", "port", port)

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
