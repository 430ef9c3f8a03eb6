package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/forgestate/pkg/cmd"
	"github.com/dukex/forgestate/pkg/log"
	"github.com/dukex/forgestate/pkg/otelhelper"
	"github.com/dukex/forgestate/pkg/synthesizer"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/dukex/forgestate/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "forgestate-api"

func main() {
	app := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Generate, validate and store Agent Forge workflow states",
		EnableShellCompletion: true,
		Flags:                 cmd.SettingsFlags(),
		Action:                run,
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	settings, err := cmd.SettingsFromCommand(command)
	if err != nil {
		return err
	}

	log.Setup(settings.LogLevel, settings.Mode)

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing forgestate API", "mode", settings.Mode, "ai_enabled", settings.AIEnabled())

	tracer, shutdownTracer, err := otelhelper.Setup(ctx, serviceName, settings.OtelEnabled)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, logger, settings)
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(logger, settings, serviceName)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	cache, closeCache, err := cmd.NewPatternCache(ctx, logger, settings)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeCache(); err != nil {
			logger.ErrorContext(ctx, "Failed to close pattern cache", "error", err)
		}
	}()

	generator := cmd.NewSynthesizer(logger, settings, tracer)

	api := NewAPI(
		logger,
		templates.Default(),
		generator,
		synthesizer.NewClassifier(generator, cache, logger),
		validation.Default(logger),
		persistence,
		eventBus,
		tracer,
	)

	activity := NewActivityRecorder(logger)

	err = activity.Start(ctx, eventBus)
	if err != nil {
		return err
	}

	api.TrackActivity(activity)

	err = api.Start(settings.Port)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start API server", "error", err)

		return err
	}

	return nil
}
