package validation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/robfig/cron/v3"
)

const (
	maxAgentTemperature  = 2.0
	teamAgentThreshold   = 3
	splitAgentsThreshold = 5
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ComplianceValidator checks blocks against the Agent Forge block catalog. Its
// outcome is reported separately as agent_forge_compliance.
type ComplianceValidator struct{}

func NewComplianceValidator() *ComplianceValidator {
	return &ComplianceValidator{}
}

func (v *ComplianceValidator) Name() string {
	return ComplianceValidatorName
}

func (v *ComplianceValidator) Validate(_ context.Context, subject *Subject) *models.ValidationResult {
	result := models.NewValidationResult(v.Name())
	if !requireState(subject, result) {
		return result
	}

	state := subject.State
	agents := make([]*models.Block, 0)
	hasAPI, hasOutput := false, false

	for _, id := range models.SortedBlockIDs(state.Blocks) {
		block := state.Blocks[id]
		if block == nil {
			continue
		}

		definition, ok := blocks.Lookup(block.Type)
		if !ok {
			result.AddError(fmt.Sprintf("block %q has unknown type %q", id, block.Type))

			continue
		}

		for _, required := range definition.Required {
			if !definition.HasSubBlock(block, required) {
				result.AddError(fmt.Sprintf("block %q (%s) is missing required sub-block %q", id, block.Type, required))
			}
		}

		for _, recommended := range definition.Recommended {
			if !definition.HasSubBlock(block, recommended) {
				result.AddWarning(fmt.Sprintf("block %q (%s) has no %q sub-block", id, block.Type, recommended))
			}
		}

		checkSubBlockShape(result, id, block)

		switch block.Type {
		case "agent":
			agents = append(agents, block)
			checkAgent(result, id, block)
		case "api":
			hasAPI = true
			checkAPI(result, id, block)
		case "output":
			hasOutput = true
		case models.BlockTypeStarter:
			checkStarter(result, id, block)
		}
	}

	if len(state.Blocks) > 0 && !hasOutput {
		result.AddWarning("workflow has no output block")
	}

	patterns := make([]string, 0)
	if len(agents) >= teamAgentThreshold {
		patterns = append(patterns, "multi_agent_team")
	}

	if hasAPI {
		patterns = append(patterns, "api_integration")
	}

	switch {
	case len(agents) == 0:
		result.AddSuggestion("Add AI agent blocks to leverage Agent Forge's capabilities")
	case len(agents) >= teamAgentThreshold && !hasCoordinator(agents):
		result.AddSuggestion("Consider adding a coordinator agent for better multi-agent orchestration")
	}

	if len(agents) > splitAgentsThreshold {
		result.AddSuggestion("Consider breaking complex workflows into sub-workflows")
	}

	result.SetMetadata("agent_count", len(agents))
	result.SetMetadata("detected_patterns", patterns)

	return result
}

func checkSubBlockShape(result *models.ValidationResult, id string, block *models.Block) {
	keys := make([]string, 0, len(block.SubBlocks))
	for key := range block.SubBlocks {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		sub := block.SubBlocks[key]

		if sub.ID != "" && sub.ID != key {
			result.AddWarning(fmt.Sprintf("block %q sub-block %q has mismatched id %q", id, key, sub.ID))
		}

		if sub.Type == "" {
			result.AddWarning(fmt.Sprintf("block %q sub-block %q has no input type", id, key))
		}
	}
}

func checkAgent(result *models.ValidationResult, id string, block *models.Block) {
	if model := block.SubBlockString("model"); model != "" && !blocks.IsKnownModel(model) {
		result.AddWarning(fmt.Sprintf("block %q uses unrecognised model %q", id, model))
	}

	value, ok := block.SubBlockValue("temperature")
	if !ok || value == nil {
		return
	}

	temperature, isNumber := value.(float64)
	if !isNumber {
		result.AddWarning(fmt.Sprintf("block %q temperature is not a number", id))

		return
	}

	if temperature < 0 || temperature > maxAgentTemperature {
		result.AddWarning(fmt.Sprintf("block %q temperature %g is outside 0..%g", id, temperature, maxAgentTemperature))
	}
}

func checkAPI(result *models.ValidationResult, id string, block *models.Block) {
	method := block.SubBlockString("method")
	if method == "" {
		return
	}

	if !slices.Contains(blocks.HTTPMethods, strings.ToUpper(method)) {
		result.AddWarning(fmt.Sprintf("block %q uses unsupported HTTP method %q", id, method))
	}
}

func checkStarter(result *models.ValidationResult, id string, block *models.Block) {
	mode := block.SubBlockString("startWorkflow")
	if mode != "" && !slices.Contains(blocks.StartModes, mode) {
		result.AddWarning(fmt.Sprintf("starter %q has unknown start mode %q", id, mode))
	}

	expression := block.SubBlockString("cronExpression")

	if mode == "schedule" && block.SubBlockString("scheduleType") == "cron" && expression == "" {
		result.AddError(fmt.Sprintf("starter %q is scheduled by cron but has no cronExpression", id))

		return
	}

	if expression == "" {
		return
	}

	_, err := cronParser.Parse(expression)
	if err != nil {
		result.AddError(fmt.Sprintf("starter %q has invalid cronExpression %q: %v", id, expression, err))
	}
}

func hasCoordinator(agents []*models.Block) bool {
	for _, agent := range agents {
		if strings.Contains(strings.ToLower(agent.Name), "coordinator") {
			return true
		}
	}

	return false
}
