package models

import "encoding/json"

type OptimizationGoal string

const (
	OptimizationEfficiency OptimizationGoal = "efficiency"
	OptimizationRobustness OptimizationGoal = "robustness"
	OptimizationCost       OptimizationGoal = "cost"
)

// StateGenerationOptions tunes prompt-based synthesis.
type StateGenerationOptions struct {
	OptimizationGoal   OptimizationGoal `json:"optimization_goal"   validate:"omitempty,oneof=efficiency robustness cost"`
	IncludeSuggestions bool             `json:"include_suggestions"`
	UseAIEnhancement   bool             `json:"use_ai_enhancement"`
}

// DefaultStateGenerationOptions returns the options applied when a request omits them.
func DefaultStateGenerationOptions() StateGenerationOptions {
	return StateGenerationOptions{
		OptimizationGoal:   OptimizationEfficiency,
		IncludeSuggestions: true,
		UseAIEnhancement:   true,
	}
}

// UnmarshalJSON keeps the defaults for fields missing from data.
func (o *StateGenerationOptions) UnmarshalJSON(data []byte) error {
	type optionsAlias StateGenerationOptions

	alias := optionsAlias(DefaultStateGenerationOptions())

	err := json.Unmarshal(data, &alias)
	if err != nil {
		return err
	}

	*o = StateGenerationOptions(alias)

	if o.OptimizationGoal == "" {
		o.OptimizationGoal = OptimizationEfficiency
	}

	return nil
}
