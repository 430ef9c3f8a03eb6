// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/forgestate/pkg/config"
	"github.com/dukex/forgestate/pkg/eventbus"
)

func NewEventBus(logger *slog.Logger, settings config.Settings, serviceName string) (eventbus.EventBus, error) {
	bus, err := eventbus.New(logger, settings.EventBus, settings.KafkaBrokers, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s event bus: %w", settings.EventBus, err)
	}

	return bus, nil
}
