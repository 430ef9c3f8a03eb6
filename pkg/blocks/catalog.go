// Package blocks describes the Agent Forge block types a workflow state may use.
package blocks

import (
	"slices"
	"sort"

	"github.com/dukex/forgestate/pkg/models"
)

// Sub-block input kinds understood by the Agent Forge editor.
const (
	InputDropdown   = "dropdown"
	InputShort      = "short-input"
	InputLong       = "long-input"
	InputCombobox   = "combobox"
	InputSlider     = "slider"
	InputTable      = "table"
	InputMulti      = "multi-select"
	InputJSON       = "json"
	InputToolInput  = "tool-input"
	InputCode       = "code"
	InputCheckboxes = "checkbox-list"
)

const (
	heightDefault = 95
	heightWide    = 120
)

// Definition is the catalog entry for one block type.
type Definition struct {
	Type        string            `json:"type"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	IsWide      bool              `json:"is_wide"`
	Height      float64           `json:"height"`
	Required    []string          `json:"required_sub_blocks"`
	Recommended []string          `json:"recommended_sub_blocks"`
	Aliases     map[string]string `json:"aliases,omitempty"`
	InputTypes  map[string]string `json:"input_types"`
	Outputs     map[string]any    `json:"outputs"`
}

// KnownModels are the agent models the runtime can dispatch to.
var KnownModels = []string{
	"gpt-4",
	"gpt-4o",
	"gpt-3.5-turbo",
	"claude-3",
	"claude-3-5-sonnet",
	"gemini-pro",
	"custom-byoi",
}

// StartModes are the accepted values of a starter's startWorkflow sub-block.
var StartModes = []string{"manual", "webhook", "schedule", "chat", "api"}

// HTTPMethods are the accepted values of an api block's method sub-block.
var HTTPMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

var definitions = map[string]*Definition{
	"starter": {
		Type:        "starter",
		DisplayName: "Start",
		Description: "Entry point that starts the workflow manually, from a webhook or on a schedule",
		Category:    "triggers",
		Required:    []string{"startWorkflow"},
		Recommended: []string{"webhookPath", "scheduleType", "cronExpression"},
		InputTypes: map[string]string{
			"startWorkflow":  InputDropdown,
			"webhookPath":    InputShort,
			"scheduleType":   InputDropdown,
			"cronExpression": InputShort,
			"inputFormat":    InputTable,
		},
		Outputs: map[string]any{
			"response": map[string]any{"type": map[string]any{"input": "any"}},
		},
	},
	"agent": {
		Type:        "agent",
		DisplayName: "Agent",
		Description: "LLM-backed agent with a system prompt, model choice and optional tools",
		Category:    "blocks",
		IsWide:      true,
		Required:    []string{"model"},
		Recommended: []string{"systemPrompt", "temperature"},
		InputTypes: map[string]string{
			"model":          InputCombobox,
			"systemPrompt":   InputLong,
			"context":        InputLong,
			"temperature":    InputSlider,
			"tools":          InputToolInput,
			"responseFormat": InputCode,
		},
		Outputs: map[string]any{
			"model":     "string",
			"tokens":    "any",
			"content":   "string",
			"toolCalls": "any",
		},
	},
	"api": {
		Type:        "api",
		DisplayName: "API",
		Description: "HTTP request to an external service",
		Category:    "blocks",
		Required:    []string{"url"},
		Recommended: []string{"method"},
		Aliases:     map[string]string{"endpoint": "url"},
		InputTypes: map[string]string{
			"url":     InputShort,
			"method":  InputDropdown,
			"headers": InputTable,
			"params":  InputTable,
			"body":    InputCode,
		},
		Outputs: map[string]any{
			"data":    "any",
			"status":  "number",
			"headers": "json",
		},
	},
	"output": {
		Type:        "output",
		DisplayName: "Output",
		Description: "Delivers the workflow result to a destination",
		Category:    "blocks",
		Required:    []string{"outputType"},
		Recommended: []string{"destination"},
		InputTypes: map[string]string{
			"outputType":  InputDropdown,
			"destination": InputShort,
			"template":    InputLong,
		},
		Outputs: map[string]any{
			"success": "boolean",
			"message": "string",
		},
	},
	"tool": {
		Type:        "tool",
		DisplayName: "Tool",
		Description: "Invokes an integration such as a CRM, a chain client or a data store",
		Category:    "tools",
		Required:    []string{"toolType"},
		Recommended: []string{"configuration"},
		InputTypes: map[string]string{
			"toolType":      InputDropdown,
			"operation":     InputDropdown,
			"configuration": InputJSON,
		},
		Outputs: map[string]any{
			"result":   "any",
			"metadata": "json",
		},
	},
	"condition": {
		Type:        "condition",
		DisplayName: "Condition",
		Description: "Branches on boolean expressions over upstream outputs",
		Category:    "blocks",
		Required:    []string{"conditions"},
		InputTypes: map[string]string{
			"conditions": InputCode,
		},
		Outputs: map[string]any{
			"content":         "string",
			"conditionResult": "boolean",
			"selectedPath":    "json",
		},
	},
	"router": {
		Type:        "router",
		DisplayName: "Router",
		Description: "Lets a model choose which downstream path to follow",
		Category:    "blocks",
		IsWide:      true,
		Required:    []string{"routes"},
		Recommended: []string{"model", "prompt"},
		InputTypes: map[string]string{
			"routes": InputTable,
			"model":  InputCombobox,
			"prompt": InputLong,
		},
		Outputs: map[string]any{
			"content":      "string",
			"selectedPath": "json",
		},
	},
	"function": {
		Type:        "function",
		DisplayName: "Function",
		Description: "Runs a JavaScript snippet over upstream outputs",
		Category:    "blocks",
		Required:    []string{"code"},
		InputTypes: map[string]string{
			"code": InputCode,
		},
		Outputs: map[string]any{
			"result": "any",
			"stdout": "string",
		},
	},
	"webhook": {
		Type:        "webhook",
		DisplayName: "Webhook",
		Description: "Receives events from external providers",
		Category:    "triggers",
		Required:    []string{"webhookPath"},
		Recommended: []string{"provider"},
		InputTypes: map[string]string{
			"webhookPath": InputShort,
			"provider":    InputDropdown,
		},
		Outputs: map[string]any{
			"payload": "json",
			"headers": "json",
		},
	},
	"evaluator": {
		Type:        "evaluator",
		DisplayName: "Evaluator",
		Description: "Scores upstream content against metrics",
		Category:    "blocks",
		IsWide:      true,
		Required:    []string{"metrics"},
		Recommended: []string{"model"},
		InputTypes: map[string]string{
			"metrics": InputTable,
			"model":   InputCombobox,
			"content": InputLong,
		},
		Outputs: map[string]any{
			"content": "string",
			"scores":  "json",
		},
	},
	"knowledge": {
		Type:        "knowledge",
		DisplayName: "Knowledge",
		Description: "Searches a knowledge base for relevant chunks",
		Category:    "tools",
		Required:    []string{"knowledgeBaseId"},
		Recommended: []string{"topK"},
		InputTypes: map[string]string{
			"knowledgeBaseId": InputDropdown,
			"query":           InputLong,
			"topK":            InputShort,
		},
		Outputs: map[string]any{
			"results":    "json",
			"totalCount": "number",
		},
	},
}

func init() {
	for _, definition := range definitions {
		definition.Height = heightDefault
		if definition.IsWide {
			definition.Height = heightWide
		}

		if definition.Recommended == nil {
			definition.Recommended = []string{}
		}
	}
}

// Lookup returns the catalog entry for blockType.
func Lookup(blockType string) (*Definition, bool) {
	definition, ok := definitions[blockType]

	return definition, ok
}

// Types returns every known block type in lexical order.
func Types() []string {
	types := make([]string, 0, len(definitions))
	for blockType := range definitions {
		types = append(types, blockType)
	}

	sort.Strings(types)

	return types
}

// All returns the catalog ordered by type.
func All() []*Definition {
	types := Types()
	all := make([]*Definition, 0, len(types))

	for _, blockType := range types {
		all = append(all, definitions[blockType])
	}

	return all
}

// HasSubBlock reports whether block sets id, directly or through one of the type's aliases,
// to a non-empty value.
func (d *Definition) HasSubBlock(block *models.Block, id string) bool {
	if isSet(block, id) {
		return true
	}

	for alias, target := range d.Aliases {
		if target == id && isSet(block, alias) {
			return true
		}
	}

	return false
}

func isSet(block *models.Block, id string) bool {
	value, ok := block.SubBlockValue(id)
	if !ok || value == nil {
		return false
	}

	if s, isString := value.(string); isString {
		return s != ""
	}

	return true
}

// IsKnownModel reports whether model is one of KnownModels.
func IsKnownModel(model string) bool {
	return slices.Contains(KnownModels, model)
}

// DefaultOutputs returns a fresh copy of the outputs declared for blockType.
func DefaultOutputs(blockType string) map[string]any {
	definition, ok := definitions[blockType]
	if !ok {
		return map[string]any{}
	}

	return copyMap(definition.Outputs)
}

// InputType returns the editor input kind for a sub-block, falling back to short-input.
func InputType(blockType, subBlockID string) string {
	if definition, ok := definitions[blockType]; ok {
		if inputType, ok := definition.InputTypes[subBlockID]; ok {
			return inputType
		}
	}

	return InputShort
}

// NewBlock builds a block of blockType with the catalog's layout defaults and outputs.
// Sub-block input types are taken from the catalog.
func NewBlock(id, blockType, name string, x, y float64, values map[string]any) *models.Block {
	block := &models.Block{
		ID:                id,
		Type:              blockType,
		Name:              name,
		Position:          models.Position{X: x, Y: y},
		Enabled:           true,
		HorizontalHandles: true,
		Height:            heightDefault,
		SubBlocks:         make(map[string]models.SubBlock, len(values)),
		Outputs:           DefaultOutputs(blockType),
	}

	if definition, ok := definitions[blockType]; ok {
		block.IsWide = definition.IsWide
		block.Height = definition.Height
	}

	for key, value := range values {
		block.SubBlocks[key] = models.SubBlock{
			ID:    key,
			Type:  InputType(blockType, key),
			Value: value,
		}
	}

	return block
}

func copyMap(source map[string]any) map[string]any {
	out := make(map[string]any, len(source))

	for key, value := range source {
		if nested, ok := value.(map[string]any); ok {
			out[key] = copyMap(nested)

			continue
		}

		out[key] = value
	}

	return out
}
