// Package config gathers the runtime settings of the forgestate services.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 8000
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
	DefaultDatabaseURL    = "file://./data"
)

// Gateway names the persistence backend selected by the settings.
type Gateway string

const (
	GatewaySupabase Gateway = "supabase"
	GatewayPostgres Gateway = "postgres"
	GatewayFile     Gateway = "file"
)

var ErrUnsupportedDatabaseURL = errors.New("unsupported database url")

// Settings holds every environment option. Zero values mean "not configured".
type Settings struct {
	DatabaseURL        string   `yaml:"database_url"`
	SupabaseURL        string   `yaml:"supabase_url" validate:"required_with=SupabaseServiceKey"`
	SupabaseServiceKey string   `yaml:"supabase_service_key" validate:"required_with=SupabaseURL"`
	AnthropicAPIKey    string   `yaml:"anthropic_api_key"`
	AnthropicModel     string   `yaml:"anthropic_model"`
	Port               int      `yaml:"port" validate:"min=1,max=65535"`
	Mode               string   `yaml:"mode" validate:"oneof=development production"`
	LogLevel           string   `yaml:"log_level" validate:"oneof=debug info warn error"`
	EventBus           string   `yaml:"event_bus" validate:"oneof=gochannel kafka"`
	KafkaBrokers       []string `yaml:"kafka_brokers" validate:"required_if=EventBus kafka"`
	RedisURL           string   `yaml:"redis_url" validate:"omitempty,url"`
	OtelEnabled        bool     `yaml:"otel_enabled"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Settings {
	return Settings{
		DatabaseURL:    DefaultDatabaseURL,
		AnthropicModel: DefaultAnthropicModel,
		Port:           DefaultPort,
		Mode:           "development",
		LogLevel:       "info",
		EventBus:       "gochannel",
	}
}

// LoadFile reads settings from a YAML file. Keys missing from the file keep their defaults.
func LoadFile(path string) (Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(data, &settings)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return settings, nil
}

// Development reports whether the service runs in development mode.
func (s Settings) Development() bool {
	return s.Mode == "development"
}

// AIEnabled reports whether an Anthropic key is configured.
func (s Settings) AIEnabled() bool {
	return s.AnthropicAPIKey != ""
}

// Validate checks the struct tags and that the database URL names a known backend.
func (s Settings) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(s)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	_, err = s.Gateway()

	return err
}

// Gateway picks the backend: the Supabase pair wins, then a postgres DATABASE_URL,
// then a file:// DATABASE_URL.
func (s Settings) Gateway() (Gateway, error) {
	if s.SupabaseURL != "" && s.SupabaseServiceKey != "" {
		return GatewaySupabase, nil
	}

	databaseURL, err := NormalizeDatabaseURL(s.DatabaseURL)
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(databaseURL, "file://") {
		return GatewayFile, nil
	}

	return GatewayPostgres, nil
}

// NormalizeDatabaseURL rewrites driver-qualified postgres URLs such as
// postgresql+asyncpg:// to the postgres:// form lib/pq understands. The asyncpg
// ssl query parameter becomes sslmode.
func NormalizeDatabaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDatabaseURL, raw)
	}

	base, _, _ := strings.Cut(strings.ToLower(scheme), "+")

	switch base {
	case "file":
		if rest == "" {
			return "", fmt.Errorf("%w: file url needs a path", ErrUnsupportedDatabaseURL)
		}

		return "file://" + rest, nil
	case "postgres", "postgresql":
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedDatabaseURL, scheme)
	}

	parsed, err := url.Parse("postgres://" + rest)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedDatabaseURL, err)
	}

	query := parsed.Query()
	if ssl := query.Get("ssl"); ssl != "" {
		query.Del("ssl")

		if query.Get("sslmode") == "" {
			query.Set("sslmode", sslMode(ssl))
		}

		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func sslMode(ssl string) string {
	switch strings.ToLower(ssl) {
	case "false", "disable", "0":
		return "disable"
	case "true", "1":
		return "require"
	default:
		return strings.ToLower(ssl)
	}
}
