// Package log configures the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Runtime modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Setup installs the default logger. Development mode always logs at debug level
// with the text handler; production logs JSON at logLevel.
func Setup(logLevel, mode string) {
	slog.SetDefault(New(os.Stderr, logLevel, mode))
}

// New builds a logger writing to w with the same rules as Setup.
func New(w io.Writer, logLevel, mode string) *slog.Logger {
	level := ParseLevel(logLevel)

	if mode == ModeDevelopment {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func ParseLevel(logLevel string) slog.Level {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return level
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
