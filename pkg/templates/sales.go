package templates

import (
	"fmt"

	"github.com/dukex/forgestate/pkg/models"
)

func leadGeneration() *Template {
	return &Template{
		Name:        "lead_generation",
		DisplayName: "Lead Generation System",
		Pattern:     models.PatternLeadGeneration,
		Description: "Capture and qualify leads from multiple sources",
		Category:    "Sales & Marketing",
		Complexity:  models.ComplexityMedium,
		Tags:        []string{"sales", "marketing", "crm", "automation"},
		Schema: objectSchema("Lead generation parameters", nil, map[string]*models.Property{
			"source":                  stringParam("Where leads come from, e.g. website or linkedin_ads", "website"),
			"crm":                     enumParam("CRM receiving qualified leads", "hubspot", "hubspot", "salesforce", "pipedrive"),
			"qualification_threshold": rangeParam("integer", "Minimum score (1-10) for a qualified lead", 7, 1, 10),
		}),
		Build: buildLeadGeneration,
	}
}

func buildLeadGeneration(p Params) *Blueprint {
	source := p.String("source")
	threshold := p.Int("qualification_threshold")
	crm := p.String("crm")

	return &Blueprint{
		Name:        "Lead Generation - " + source,
		Description: "Automated lead capture and qualification from " + source,
		Color:       "#4ECDC4",
		Blocks: []*models.Block{
			block("starter_1", "starter", "Lead Capture", 0, 0, map[string]any{
				"startWorkflow": "webhook",
				"webhookPath":   "/lead-capture/" + slug(source),
			}),
			block("agent_1", "agent", "Lead Qualifier", 1, 0, map[string]any{
				"model": "gpt-4",
				"systemPrompt": fmt.Sprintf(
					"You are a lead qualification specialist. Score each lead from %s between 1 and 10 "+
						"based on fit and intent. Leads scoring %d or more are qualified.", source, threshold),
				"temperature": 0.3,
			}),
			block("tool_1", "tool", "CRM Integration", 2, 0, map[string]any{
				"toolType":      "crm",
				"operation":     "create_contact",
				"configuration": map[string]any{"provider": crm},
			}),
			block("output_1", "output", "Sales Notification", 3, 0, map[string]any{
				"outputType":  "slack",
				"destination": "#sales-leads",
			}),
		},
		Edges: chain("starter_1", "agent_1", "tool_1", "output_1"),
		Variables: map[string]any{
			"LEAD_SOURCE":             source,
			"QUALIFICATION_THRESHOLD": threshold,
			"CRM_PROVIDER":            crm,
		},
	}
}

func customerSupport() *Template {
	return &Template{
		Name:        "customer_support",
		DisplayName: "Customer Support Automation",
		Pattern:     models.PatternCustomerSupport,
		Description: "Classify incoming tickets, answer routine ones and escalate the rest",
		Category:    "Customer Service",
		Complexity:  models.ComplexityMedium,
		Tags:        []string{"support", "tickets", "helpdesk", "automation"},
		Schema: objectSchema("Customer support parameters", nil, map[string]*models.Property{
			"company_name":         stringParam("Company the assistant answers for", "Acme"),
			"channel":              enumParam("Channel replies are sent through", "email", "email", "chat", "slack"),
			"escalation_threshold": rangeParam("number", "Confidence below which tickets go to a human", 0.7, 0, 1),
		}),
		Build: buildCustomerSupport,
	}
}

func buildCustomerSupport(p Params) *Blueprint {
	company := p.String("company_name")
	channel := p.String("channel")
	threshold := p.Number("escalation_threshold")

	return &Blueprint{
		Name:        "Customer Support - " + company,
		Description: fmt.Sprintf("Answers %s support tickets over %s and escalates low-confidence cases", company, channel),
		Color:       "#3498DB",
		Blocks: []*models.Block{
			block("starter_1", "starter", "Ticket Received", 0, 0, map[string]any{
				"startWorkflow": "webhook",
				"webhookPath":   "/support/tickets",
			}),
			block("agent_1", "agent", "Ticket Classifier", 1, 0, map[string]any{
				"model":        "gpt-4",
				"systemPrompt": "You are a customer support specialist. Classify support tickets by urgency, category, and required expertise.",
				"temperature":  0.2,
			}),
			block("condition_1", "condition", "Escalation Check", 2, 0, map[string]any{
				"conditions": []any{
					map[string]any{
						"id":    "condition-true",
						"title": "if",
						"value": fmt.Sprintf("<agent_1.confidence> >= %s", formatNumber(threshold)),
					},
					map[string]any{"id": "condition-false", "title": "else", "value": ""},
				},
			}),
			block("agent_2", "agent", "Auto Responder", 3, 0, map[string]any{
				"model":        "gpt-4",
				"systemPrompt": fmt.Sprintf("You answer customer questions for %s politely and concisely.", company),
				"temperature":  0.5,
			}),
			block("output_1", "output", "Send Response", 4, 0, map[string]any{
				"outputType":  channel,
				"destination": "{{ticket.requester}}",
			}),
			block("output_2", "output", "Escalate to Human", 3, 1, map[string]any{
				"outputType":  "slack",
				"destination": "#support-escalations",
			}),
		},
		Edges: []models.Edge{
			models.NewEdge("starter_1", "agent_1"),
			models.NewEdge("agent_1", "condition_1"),
			branch("condition_1", "agent_2", "condition-true"),
			branch("condition_1", "output_2", "condition-false"),
			models.NewEdge("agent_2", "output_1"),
		},
		Variables: map[string]any{
			"COMPANY_NAME":         company,
			"SUPPORT_CHANNEL":      channel,
			"ESCALATION_THRESHOLD": threshold,
		},
	}
}
