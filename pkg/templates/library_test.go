package templates

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// minimalParams holds the smallest parameter set each built-in template accepts.
var minimalParams = map[string]map[string]any{
	"content_generation": {"topic": "vector databases"},
}

func fixedLibrary(t *testing.T) *Library {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	return Default(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() (string, error) { return "0197a1b2-0000-7000-8000-000000000001", nil }),
	)
}

func TestLibrary_List(t *testing.T) {
	library := Default()

	descriptors := library.List(Filter{})
	require.Len(t, descriptors, 8)

	names := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		names = append(names, descriptor.Name)
		assert.NotEmpty(t, descriptor.DisplayName)
		assert.NotEmpty(t, descriptor.Category)
		require.NotNil(t, descriptor.ParameterSchema)
		assert.Equal(t, "object", descriptor.ParameterSchema.Type)
	}

	assert.Equal(t, []string{
		"lead_generation",
		"trading_bot",
		"multi_agent_research",
		"customer_support",
		"web3_automation",
		"data_pipeline",
		"content_generation",
		"notification_system",
	}, names)
}

func TestLibrary_ListFilters(t *testing.T) {
	library := Default()

	tests := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{"category", Filter{Category: "web3 trading"}, []string{"trading_bot"}},
		{"complexity", Filter{Complexity: "simple"}, []string{"notification_system"}},
		{"query on tags", Filter{Query: "defi"}, []string{"trading_bot", "web3_automation"}},
		{"query on display name", Filter{Query: "Research Team"}, []string{"multi_agent_research"}},
		{"no match", Filter{Category: "Gardening"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, 0)
			for _, descriptor := range library.List(tt.filter) {
				names = append(names, descriptor.Name)
			}

			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestLibrary_Get(t *testing.T) {
	library := Default()

	descriptor, err := library.Get("trading_bot")
	require.NoError(t, err)
	assert.Equal(t, "Crypto Trading Bot", descriptor.DisplayName)

	_, err = library.Get("nonexistent")
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestLibrary_InstantiateTradingBot(t *testing.T) {
	library := fixedLibrary(t)

	workflow, err := library.Instantiate("trading_bot", map[string]any{
		"trading_pair": "ETH/USD",
		"stop_loss":    -2,
		"take_profit":  8,
	})
	require.NoError(t, err)

	assert.Equal(t, "Trading Bot - ETH/USD", workflow.Name)
	assert.Equal(t, "#FF6B6B", workflow.Color)
	require.NotNil(t, workflow.Description)
	assert.Equal(t, "Automated trading bot for ETH/USD with -2% stop-loss", *workflow.Description)
	assert.Equal(t, map[string]any{
		"TRADING_PAIR": "ETH/USD",
		"STOP_LOSS":    float64(-2),
		"TAKE_PROFIT":  float64(8),
	}, workflow.State.Variables)

	assert.Equal(t, "0197a1b2-0000-7000-8000-000000000001", workflow.ID)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", workflow.State.Metadata.CreatedAt)
	assert.Equal(t, "trading_bot", workflow.State.Metadata.Pattern)

	priceFeed := workflow.State.Blocks["api_1"]
	require.NotNil(t, priceFeed)
	assert.Equal(t, "https://api.binance.com/api/v3/ticker/price", priceFeed.SubBlockString("url"))
	assert.Equal(t, "*/5 * * * *", workflow.State.Blocks["starter_1"].SubBlockString("cronExpression"))
}

func TestLibrary_InstantiateTradingBotDefaults(t *testing.T) {
	workflow, err := Default().Instantiate("trading_bot", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "Trading Bot - BTC/USD", workflow.Name)
	assert.Equal(t, map[string]any{
		"TRADING_PAIR": "BTC/USD",
		"STOP_LOSS":    float64(-5),
		"TAKE_PROFIT":  float64(10),
	}, workflow.State.Variables)

	_, err = uuid.Parse(workflow.ID)
	assert.NoError(t, err)
}

func TestLibrary_InstantiateLeadGeneration(t *testing.T) {
	workflow, err := Default().Instantiate("lead_generation", map[string]any{"source": "linkedin_ads"})
	require.NoError(t, err)

	assert.Equal(t, "Lead Generation - linkedin_ads", workflow.Name)
	assert.Equal(t, "#4ECDC4", workflow.Color)
	assert.Equal(t, "Automated lead capture and qualification from linkedin_ads", *workflow.Description)
	assert.Equal(t, "/lead-capture/linkedin-ads", workflow.State.Blocks["starter_1"].SubBlockString("webhookPath"))
}

func TestLibrary_InstantiateUnknown(t *testing.T) {
	_, err := Default().Instantiate("nonexistent", map[string]any{})

	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestLibrary_InstantiateInvalidParameters(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   map[string]any
		field    string
	}{
		{"wrong type", "trading_bot", map[string]any{"stop_loss": "a lot"}, "stop_loss"},
		{"enum", "trading_bot", map[string]any{"exchange": "mtgox"}, "exchange"},
		{"range", "lead_generation", map[string]any{"qualification_threshold": 42}, "qualification_threshold"},
		{"integer", "multi_agent_research", map[string]any{"researcher_count": 2.5}, "researcher_count"},
		{"pattern", "web3_automation", map[string]any{"contract_address": "0x123"}, "contract_address"},
		{"missing required", "content_generation", map[string]any{}, "topic"},
		{"array items", "notification_system", map[string]any{"channels": []any{"pager"}}, "channels.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().Instantiate(tt.template, tt.params)
			require.ErrorIs(t, err, ErrTemplateParameterInvalid)

			var paramErr *ParameterError
			require.True(t, errors.As(err, &paramErr))
			assert.Equal(t, tt.template, paramErr.Template)

			fields := make([]string, 0, len(paramErr.Fields))
			for _, field := range paramErr.Fields {
				fields = append(fields, field.Field)
			}

			assert.Contains(t, fields, tt.field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBuiltin_DefaultsProduceWellFormedWorkflows(t *testing.T) {
	library := Default()

	for _, descriptor := range library.List(Filter{}) {
		t.Run(descriptor.Name, func(t *testing.T) {
			workflow, err := library.Instantiate(descriptor.Name, minimalParams[descriptor.Name])
			require.NoError(t, err)

			_, err = uuid.Parse(workflow.ID)
			require.NoError(t, err)
			assert.Regexp(t, hexColor, workflow.Color)
			assert.NotEmpty(t, workflow.Name)

			starters := workflow.State.BlocksOfType(models.BlockTypeStarter)
			assert.Len(t, starters, 1)

			for key, block := range workflow.State.Blocks {
				assert.Equal(t, key, block.ID)
			}

			for _, edge := range workflow.State.Edges {
				assert.Contains(t, workflow.State.Blocks, edge.Source)
				assert.Contains(t, workflow.State.Blocks, edge.Target)
			}

			created, err := models.ParseTimestamp(workflow.State.Metadata.CreatedAt)
			require.NoError(t, err)
			updated, err := models.ParseTimestamp(workflow.State.Metadata.UpdatedAt)
			require.NoError(t, err)
			assert.False(t, updated.Before(created))

			data, err := json.Marshal(workflow)
			require.NoError(t, err)

			var decoded models.Workflow
			require.NoError(t, json.Unmarshal(data, &decoded))

			again, err := json.Marshal(&decoded)
			require.NoError(t, err)
			assert.JSONEq(t, string(data), string(again))
		})
	}
}

func TestBuiltin_NotificationChannelsFanOut(t *testing.T) {
	workflow, err := Default().Instantiate("notification_system", map[string]any{
		"channels": []any{"sms", "email", "sms"},
	})
	require.NoError(t, err)

	assert.Contains(t, workflow.State.Blocks, "output_sms")
	assert.Contains(t, workflow.State.Blocks, "output_email")
	assert.NotContains(t, workflow.State.Blocks, "output_slack")
	assert.Len(t, workflow.State.Edges, 3)
}

func TestBuiltin_ResearchTeamSize(t *testing.T) {
	workflow, err := Default().Instantiate("multi_agent_research", map[string]any{"researcher_count": 4})
	require.NoError(t, err)

	assert.Len(t, workflow.State.BlocksOfType("agent"), 6)
	assert.Equal(t, 4, workflow.State.Variables["RESEARCHER_COUNT"])
}

func TestBuiltin_PatternsComeFromVocabulary(t *testing.T) {
	library := Default()

	for _, descriptor := range library.List(Filter{}) {
		t.Run(descriptor.Name, func(t *testing.T) {
			workflow, err := library.Instantiate(descriptor.Name, minimalParams[descriptor.Name])
			require.NoError(t, err)

			pattern := workflow.State.Metadata.Pattern
			if pattern == "" {
				return
			}

			assert.NotEqual(t, models.PatternUnknown, models.ParsePattern(pattern), "pattern %q", pattern)
		})
	}

	workflow, err := library.Instantiate("notification_system", nil)
	require.NoError(t, err)
	assert.Empty(t, workflow.State.Metadata.Pattern, "left to the classifier")

	workflow, err = library.Instantiate("data_pipeline", nil)
	require.NoError(t, err)
	assert.Equal(t, string(models.PatternDataPipeline), workflow.State.Metadata.Pattern)
}
