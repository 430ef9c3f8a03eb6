package templates

import (
	"fmt"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
)

func dataPipeline() *Template {
	return &Template{
		Name:        "data_pipeline",
		DisplayName: "Data Processing Pipeline",
		Pattern:     models.PatternDataPipeline,
		Description: "Extract, transform and load data on a schedule",
		Category:    "Data Processing",
		Complexity:  models.ComplexityMedium,
		Tags:        []string{"etl", "data", "pipeline", "analytics"},
		Schema: objectSchema("Data pipeline parameters", nil, map[string]*models.Property{
			"source_url":  stringParam("Endpoint the pipeline extracts from", "https://api.example.com/data"),
			"schedule":    stringParam("Standard five-field cron expression", "0 * * * *"),
			"destination": enumParam("Where transformed records are loaded", "warehouse", "warehouse", "s3", "postgres"),
		}),
		Build: buildDataPipeline,
	}
}

func buildDataPipeline(p Params) *Blueprint {
	sourceURL := p.String("source_url")
	schedule := p.String("schedule")
	destination := p.String("destination")

	return &Blueprint{
		Name:        "Data Pipeline - " + destination,
		Description: fmt.Sprintf("Loads %s into %s on schedule %q", sourceURL, destination, schedule),
		Color:       "#2ECC71",
		Blocks: []*models.Block{
			block("starter_1", "starter", "Data Ingestion", 0, 0, map[string]any{
				"startWorkflow":  "schedule",
				"scheduleType":   "cron",
				"cronExpression": schedule,
			}),
			block("api_1", "api", "Data Source", 1, 0, map[string]any{
				"url":     sourceURL,
				"method":  "GET",
				"headers": map[string]any{"Accept": "application/json"},
			}),
			block("function_1", "function", "Data Transformer", 2, 0, map[string]any{
				"code": "return (input.data || []).filter(Boolean).map((row) => ({ ...row, processed_at: new Date().toISOString() }));",
			}),
			block("tool_1", "tool", "Data Export", 3, 0, map[string]any{
				"toolType":      destination,
				"operation":     "insert",
				"configuration": map[string]any{"table": "{{env.PIPELINE_TABLE}}"},
			}),
			block("output_1", "output", "Pipeline Summary", 4, 0, map[string]any{
				"outputType":  "log",
				"destination": "pipelines",
			}),
		},
		Edges: chain("starter_1", "api_1", "function_1", "tool_1", "output_1"),
		Variables: map[string]any{
			"SOURCE_URL":  sourceURL,
			"SCHEDULE":    schedule,
			"DESTINATION": destination,
		},
	}
}

var channelNames = map[string]string{
	"email": "Email Notification",
	"slack": "Slack Notification",
	"sms":   "SMS Notification",
}

func notificationSystem() *Template {
	channels := &models.Property{
		Type:        "array",
		Description: "Channels that receive each alert",
		Default:     []any{"email", "slack"},
		Items: &models.Property{
			Type: "string",
			Enum: []any{"email", "slack", "sms"},
		},
	}

	return &Template{
		Name:        "notification_system",
		DisplayName: "Multi-Channel Notification System",
		Description: "Compose alerts once and fan them out to every configured channel",
		Category:    "Communication",
		Complexity:  models.ComplexitySimple,
		Tags:        []string{"notifications", "alerts", "email", "slack"},
		Schema: objectSchema("Notification parameters", nil, map[string]*models.Property{
			"channels": channels,
			"severity": enumParam("Minimum severity that is forwarded", "warning", "info", "warning", "critical"),
		}),
		Build: buildNotificationSystem,
	}
}

func buildNotificationSystem(p Params) *Blueprint {
	severity := p.String("severity")
	channels := p.Strings("channels")

	blockList := []*models.Block{
		block("starter_1", "starter", "Alert Trigger", 0, 0, map[string]any{
			"startWorkflow": "webhook",
			"webhookPath":   "/alerts",
		}),
		block("agent_1", "agent", "Message Composer", 1, 0, map[string]any{
			"model":        "gpt-3.5-turbo",
			"systemPrompt": fmt.Sprintf("Turn %s-level alerts into short, actionable notifications.", severity),
			"temperature":  0.2,
		}),
	}

	edges := []models.Edge{models.NewEdge("starter_1", "agent_1")}
	seen := make(map[string]bool, len(channels))

	for _, channel := range channels {
		if seen[channel] {
			continue
		}

		seen[channel] = true
		id := "output_" + channel

		blockList = append(blockList, block(id, "output", channelNames[channel], 2, len(seen)-1, map[string]any{
			"outputType":  channel,
			"destination": "{{env." + strings.ToUpper(channel) + "_RECIPIENT}}",
		}))
		edges = append(edges, models.NewEdge("agent_1", id))
	}

	return &Blueprint{
		Name:        "Notifications - " + severity,
		Description: fmt.Sprintf("Forwards %s alerts to %s", severity, strings.Join(channels, ", ")),
		Color:       "#1ABC9C",
		Blocks:      blockList,
		Edges:       edges,
		Variables: map[string]any{
			"SEVERITY": severity,
			"CHANNELS": channels,
		},
	}
}
