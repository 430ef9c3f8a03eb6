package synthesizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
)

// SystemDirective is sent as the system prompt on every generation request.
const SystemDirective = "You are an expert at generating Agent Forge workflow states. " +
	"Always respond with valid JSON only, no explanations or markdown."

var goalWording = map[models.OptimizationGoal]string{
	models.OptimizationEfficiency: "Optimize for efficiency: use the fewest blocks and hops that satisfy the request, " +
		"and prefer fast, inexpensive models for simple steps.",
	models.OptimizationRobustness: "Optimize for robustness: add condition blocks for failure paths, validate inputs " +
		"before acting on them, and route errors to an output block.",
	models.OptimizationCost: "Optimize for cost: minimize agent calls, prefer gpt-3.5-turbo or other low-cost models, " +
		"and batch work into scheduled runs where possible.",
}

// BuildPrompt renders the user prompt for a generation request.
func BuildPrompt(description string, options models.StateGenerationOptions) string {
	var b strings.Builder

	b.WriteString("Generate an Agent Forge workflow state for the following request:\n\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nOPTIMIZATION GOAL:\n")

	wording, ok := goalWording[options.OptimizationGoal]
	if !ok {
		wording = goalWording[models.OptimizationEfficiency]
	}

	b.WriteString(wording)

	b.WriteString(`

REQUIREMENTS:
1. Return one JSON object with exactly these top-level keys:
   - blocks: object keyed by block id
   - edges: array of {"source", "target", "source_handle": "output", "target_handle": "input"}
   - subflows: {}
   - variables: object of workflow variables
   - metadata: {"version": "1.0.0", "createdAt": ISO-8601 UTC, "updatedAt": ISO-8601 UTC}
2. Every block has id (equal to its key), type, name, position {"x", "y"}, enabled,
   horizontal_handles, is_wide, height, sub_blocks and outputs.
3. Every sub-block is {"id", "type", "value"} where type is the editor input kind.
4. Exactly one starter block. Lay blocks out left to right, 250px apart.
5. Every edge endpoint must be an existing block id. No orphaned blocks.

BLOCK CATALOG:
`)

	for _, definition := range blocks.All() {
		fmt.Fprintf(&b, "- %s: %s. Required sub-blocks: %s", definition.Type, definition.Description,
			listOrNone(definition.Required))

		if len(definition.Recommended) > 0 {
			fmt.Fprintf(&b, ". Recommended: %s", strings.Join(definition.Recommended, ", "))
		}

		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nAgent models: %s.\n", strings.Join(blocks.KnownModels, ", "))
	fmt.Fprintf(&b, "Starter startWorkflow values: %s.\n", strings.Join(blocks.StartModes, ", "))

	if options.IncludeSuggestions {
		b.WriteString("\nAlso include a top-level \"suggestions\" array of short strings with improvements " +
			"the user could make to the workflow.\n")
	}

	b.WriteString("\nIMPORTANT: Return ONLY valid JSON. No explanations, no markdown, just the state object.\n")

	return b.String()
}

// BuildClassificationPrompt renders the prompt asking for a single pattern label.
func BuildClassificationPrompt(state *models.WorkflowState) string {
	type summaryBlock struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}

	summary := struct {
		Blocks    []summaryBlock `json:"blocks"`
		Variables []string       `json:"variables"`
	}{
		Blocks:    make([]summaryBlock, 0, len(state.Blocks)),
		Variables: make([]string, 0, len(state.Variables)),
	}

	for _, id := range models.SortedBlockIDs(state.Blocks) {
		if block := state.Blocks[id]; block != nil {
			summary.Blocks = append(summary.Blocks, summaryBlock{Type: block.Type, Name: block.Name})
		}
	}

	for key := range state.Variables {
		summary.Variables = append(summary.Variables, key)
	}

	sort.Strings(summary.Variables)

	data, _ := json.MarshalIndent(summary, "", "  ")

	var b strings.Builder

	b.WriteString("Analyze this workflow data and identify the Agent Forge pattern:\n")
	b.Write(data)
	b.WriteString("\n\nRespond with one of these patterns:\n")

	for _, pattern := range models.Patterns {
		b.WriteString("- " + string(pattern) + "\n")
	}

	b.WriteString("\nJust respond with the pattern name, nothing else.")

	return b.String()
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}

	return strings.Join(values, ", ")
}
