package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/forgestate/pkg/config"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/persistence/file"
	"github.com/dukex/forgestate/pkg/persistence/postgresql"
	"github.com/dukex/forgestate/pkg/persistence/supabase"
)

// NewPersistence opens the gateway selected by settings.Gateway.
func NewPersistence(ctx context.Context, logger *slog.Logger, settings config.Settings) (persistence.Persistence, error) {
	gateway, err := settings.Gateway()
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Opening persistence", "gateway", gateway)

	switch gateway {
	case config.GatewaySupabase:
		return supabase.NewPersistence(logger, settings.SupabaseURL, settings.SupabaseServiceKey), nil
	case config.GatewayPostgres:
		databaseURL, err := config.NormalizeDatabaseURL(settings.DatabaseURL)
		if err != nil {
			return nil, err
		}

		p, err := postgresql.NewPersistence(ctx, logger, databaseURL, postgresql.WithSQLEcho(settings.Development()))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return p, nil
	default:
		databaseURL, err := config.NormalizeDatabaseURL(settings.DatabaseURL)
		if err != nil {
			return nil, err
		}

		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
