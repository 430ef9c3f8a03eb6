package sqlbase

import (
	"context"
	"database/sql"
	"log/slog"
)

// Execer is the statement surface shared by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Echo logs every statement at debug level before running it on the wrapped Execer.
type Echo struct {
	Execer

	logger  *slog.Logger
	enabled bool
}

// NewEcho wraps e. When enabled is false statements run without logging.
func NewEcho(e Execer, logger *slog.Logger, enabled bool) *Echo {
	return &Echo{Execer: e, logger: logger, enabled: enabled}
}

// On returns the same echo settings applied to another Execer, typically a transaction.
func (e *Echo) On(other Execer) *Echo {
	return &Echo{Execer: other, logger: e.logger, enabled: e.enabled}
}

func (e *Echo) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.echo(ctx, query, args)

	return e.Execer.ExecContext(ctx, query, args...)
}

func (e *Echo) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e.echo(ctx, query, args)

	return e.Execer.QueryContext(ctx, query, args...)
}

func (e *Echo) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	e.echo(ctx, query, args)

	return e.Execer.QueryRowContext(ctx, query, args...)
}

func (e *Echo) echo(ctx context.Context, query string, args []any) {
	if !e.enabled {
		return
	}

	e.logger.DebugContext(ctx, "SQL", "sql", query, "args", len(args))
}
