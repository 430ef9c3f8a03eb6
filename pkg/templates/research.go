package templates

import (
	"fmt"
	"strconv"

	"github.com/dukex/forgestate/pkg/models"
)

var researcherFocus = []string{
	"Collect primary sources and quantitative data",
	"Survey expert opinion and recent publications",
	"Map competitors, vendors and adjacent markets",
	"Identify risks, open questions and contrarian views",
}

func multiAgentResearch() *Template {
	return &Template{
		Name:        "multi_agent_research",
		DisplayName: "Multi-Agent Research Team",
		Pattern:     models.PatternMultiAgentResearch,
		Description: "A coordinator splits a topic across specialist researchers and merges their findings",
		Category:    "AI Automation",
		Complexity:  models.ComplexityAdvanced,
		Tags:        []string{"research", "multi-agent", "analysis", "reports"},
		Schema: objectSchema("Research team parameters", nil, map[string]*models.Property{
			"research_topic":   stringParam("Topic to research", "emerging AI agent frameworks"),
			"depth_level":      enumParam("How deep the team should go", "standard", "overview", "standard", "deep"),
			"researcher_count": rangeParam("integer", "Number of specialist researchers", 2, 1, float64(len(researcherFocus))),
		}),
		Build: buildMultiAgentResearch,
	}
}

func buildMultiAgentResearch(p Params) *Blueprint {
	topic := p.String("research_topic")
	depth := p.String("depth_level")
	count := p.Int("researcher_count")

	blockList := []*models.Block{
		block("starter_1", "starter", "Research Request", 0, 0, map[string]any{
			"startWorkflow": "manual",
			"inputFormat": []any{
				map[string]any{"name": "research_topic", "type": "string"},
				map[string]any{"name": "depth_level", "type": "string"},
			},
		}),
		block("agent_coordinator", "agent", "Research Coordinator", 1, 0, map[string]any{
			"model":        "claude-3",
			"systemPrompt": fmt.Sprintf("Break down research on %q into subtasks for %d specialized agents at %s depth.", topic, count, depth),
			"temperature":  0.2,
		}),
	}

	edges := []models.Edge{models.NewEdge("starter_1", "agent_coordinator")}

	for i := range count {
		id := "agent_researcher_" + strconv.Itoa(i+1)

		blockList = append(blockList, block(id, "agent", fmt.Sprintf("Researcher %d", i+1), 2, i, map[string]any{
			"model":        "gpt-4",
			"systemPrompt": researcherFocus[i] + " about " + topic + ".",
			"temperature":  0.4,
		}))

		edges = append(edges,
			models.NewEdge("agent_coordinator", id),
			models.NewEdge(id, "agent_synthesizer"),
		)
	}

	blockList = append(blockList,
		block("agent_synthesizer", "agent", "Report Generator", 3, 0, map[string]any{
			"model":        "claude-3",
			"systemPrompt": "Synthesize research findings into a comprehensive report with citations.",
			"temperature":  0.3,
		}),
		block("output_1", "output", "Research Report", 4, 0, map[string]any{
			"outputType":  "document",
			"destination": "reports",
		}),
	)

	edges = append(edges, models.NewEdge("agent_synthesizer", "output_1"))

	return &Blueprint{
		Name:        "Multi-Agent Research - " + topic,
		Description: fmt.Sprintf("%d researchers investigate %s at %s depth", count, topic, depth),
		Color:       "#9B59B6",
		Blocks:      blockList,
		Edges:       edges,
		Variables: map[string]any{
			"RESEARCH_TOPIC":   topic,
			"DEPTH_LEVEL":      depth,
			"RESEARCHER_COUNT": count,
		},
	}
}

func contentGeneration() *Template {
	return &Template{
		Name:        "content_generation",
		DisplayName: "Content Generation System",
		Pattern:     models.PatternContentGeneration,
		Description: "Plan, write and edit content with a pipeline of specialised agents",
		Category:    "Content & Media",
		Complexity:  models.ComplexityMedium,
		Tags:        []string{"content", "writing", "marketing", "seo"},
		Schema: objectSchema("Content generation parameters", []string{"topic"}, map[string]*models.Property{
			"topic":        requiredStringParam("Subject of the content"),
			"content_type": enumParam("Kind of content", "blog_post", "blog_post", "social_media", "newsletter"),
			"tone":         enumParam("Voice of the writing", "professional", "professional", "casual", "technical"),
			"word_count":   rangeParam("integer", "Target length in words", 800, 100, 5000),
		}),
		Build: buildContentGeneration,
	}
}

func buildContentGeneration(p Params) *Blueprint {
	topic := p.String("topic")
	contentType := p.String("content_type")
	tone := p.String("tone")
	words := p.Int("word_count")

	return &Blueprint{
		Name:        "Content Generation - " + topic,
		Description: fmt.Sprintf("Produces a %d-word %s about %s", words, contentType, topic),
		Color:       "#E74C3C",
		Blocks: []*models.Block{
			block("starter_1", "starter", "Content Request", 0, 0, map[string]any{
				"startWorkflow": "manual",
			}),
			block("agent_planner", "agent", "Content Planner", 1, 0, map[string]any{
				"model":        "gpt-4",
				"systemPrompt": fmt.Sprintf("Outline a %s about %s with SEO keywords and section headings.", contentType, topic),
				"temperature":  0.5,
			}),
			block("agent_writer", "agent", "Content Writer", 2, 0, map[string]any{
				"model":        "claude-3",
				"systemPrompt": fmt.Sprintf("Write about %d words following the outline in a %s tone.", words, tone),
				"temperature":  0.7,
			}),
			block("agent_editor", "agent", "Content Editor", 3, 0, map[string]any{
				"model":        "gpt-4",
				"systemPrompt": "Edit the draft for clarity, accuracy and grammar. Keep the author's voice.",
				"temperature":  0.2,
			}),
			block("output_1", "output", "Publish Draft", 4, 0, map[string]any{
				"outputType":  "document",
				"destination": "cms-drafts",
			}),
		},
		Edges: chain("starter_1", "agent_planner", "agent_writer", "agent_editor", "output_1"),
		Variables: map[string]any{
			"TOPIC":        topic,
			"CONTENT_TYPE": contentType,
			"TONE":         tone,
			"WORD_COUNT":   words,
		},
	}
}
