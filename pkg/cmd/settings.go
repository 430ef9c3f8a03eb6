package cmd

import (
	"strings"

	"github.com/dukex/forgestate/pkg/channels/kafka"
	"github.com/dukex/forgestate/pkg/config"
	cli "github.com/urfave/cli/v3"
)

// SettingsFlags are the flags every forgestate binary accepts. Each one can also
// come from the environment variable named in its Sources.
func SettingsFlags() []cli.Flag {
	defaults := config.Defaults()

	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to a YAML settings file; flags and environment override it",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database URL (postgres://, postgresql+asyncpg:// or file://)",
			Value:   defaults.DatabaseURL,
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "supabase-url",
			Usage:   "Supabase project URL",
			Sources: cli.EnvVars("SUPABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "supabase-service-key",
			Usage:   "Supabase service role key",
			Sources: cli.EnvVars("SUPABASE_SERVICE_KEY"),
		},
		&cli.StringFlag{
			Name:    "anthropic-api-key",
			Usage:   "Anthropic API key; prompt synthesis is disabled without it",
			Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "anthropic-model",
			Usage:   "Anthropic model used for synthesis and classification",
			Value:   defaults.AnthropicModel,
			Sources: cli.EnvVars("ANTHROPIC_MODEL"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaults.Port,
			Sources: cli.EnvVars("API_PORT", "PORT"),
		},
		&cli.StringFlag{
			Name:    "mode",
			Usage:   "Runtime mode (development, production)",
			Value:   defaults.Mode,
			Sources: cli.EnvVars("AGENT_FORGE_MODE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   defaults.LogLevel,
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus for workflow lifecycle events (gochannel, kafka)",
			Value:   defaults.EventBus,
			Sources: cli.EnvVars("EVENT_BUS"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka broker addresses",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the pattern cache; an in-process cache is used without it",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

// SettingsFromCommand layers the settings: defaults, then the --config file, then
// any flag or environment variable that was set. The result is validated.
func SettingsFromCommand(command *cli.Command) (config.Settings, error) {
	settings := config.Defaults()

	if path := command.String("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return config.Settings{}, err
		}

		settings = loaded
	}

	overrideString(command, "database-url", &settings.DatabaseURL)
	overrideString(command, "supabase-url", &settings.SupabaseURL)
	overrideString(command, "supabase-service-key", &settings.SupabaseServiceKey)
	overrideString(command, "anthropic-api-key", &settings.AnthropicAPIKey)
	overrideString(command, "anthropic-model", &settings.AnthropicModel)
	overrideString(command, "mode", &settings.Mode)
	overrideString(command, "log-level", &settings.LogLevel)
	overrideString(command, "event-bus", &settings.EventBus)
	overrideString(command, "redis-url", &settings.RedisURL)

	if command.IsSet("port") {
		settings.Port = command.Int("port")
	}

	if command.IsSet("kafka-brokers") {
		settings.KafkaBrokers = kafka.Brokers(strings.Join(command.StringSlice("kafka-brokers"), ","))
	}

	if command.IsSet("otel-enabled") {
		settings.OtelEnabled = command.Bool("otel-enabled")
	}

	err := settings.Validate()
	if err != nil {
		return config.Settings{}, err
	}

	return settings, nil
}

func overrideString(command *cli.Command, name string, target *string) {
	if command.IsSet(name) {
		*target = command.String(name)
	}
}
