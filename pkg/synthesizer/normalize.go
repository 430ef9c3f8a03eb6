package synthesizer

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
)

// GeneratedBy is written into metadata.generatedBy for synthesized states.
const GeneratedBy = "claude"

// camelCase keys models tend to emit, mapped to the snake_case wire form.
var blockKeyAliases = map[string]string{
	"subBlocks":         "sub_blocks",
	"horizontalHandles": "horizontal_handles",
	"isWide":            "is_wide",
	"advancedMode":      "advanced_mode",
	"parentId":          "parent_id",
}

var edgeKeyAliases = map[string]string{
	"from":         "source",
	"to":           "target",
	"sourceHandle": "source_handle",
	"targetHandle": "target_handle",
}

// Normalize repairs a decoded model reply in place so it has the shape of a
// workflow state: containers are filled, block and edge keys are brought to the
// wire form and metadata is stamped. A top-level suggestions array is removed
// from the state and returned separately.
func Normalize(reply map[string]any, now time.Time) (map[string]any, []string) {
	suggestions := takeSuggestions(reply)

	reply["blocks"] = normalizeBlocks(reply["blocks"])
	reply["edges"] = normalizeEdges(reply["edges"])

	if _, ok := reply["subflows"].(map[string]any); !ok {
		reply["subflows"] = map[string]any{}
	}

	if _, ok := reply["variables"].(map[string]any); !ok {
		reply["variables"] = map[string]any{}
	}

	reply["metadata"] = normalizeMetadata(reply["metadata"], now)

	return reply, suggestions
}

func takeSuggestions(reply map[string]any) []string {
	raw, ok := reply["suggestions"]
	if !ok {
		return nil
	}

	delete(reply, "suggestions")

	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	suggestions := make([]string, 0, len(list))

	for _, item := range list {
		if s, isString := item.(string); isString && s != "" {
			suggestions = append(suggestions, s)
		}
	}

	return suggestions
}

func normalizeBlocks(raw any) map[string]any {
	out := map[string]any{}

	switch typed := raw.(type) {
	case map[string]any:
		for key, value := range typed {
			if block, ok := value.(map[string]any); ok {
				out[key] = normalizeBlock(key, block)
			}
		}
	case []any:
		for i, value := range typed {
			block, ok := value.(map[string]any)
			if !ok {
				continue
			}

			key, _ := block["id"].(string)
			if key == "" {
				key = "block_" + strconv.Itoa(i+1)
			}

			out[key] = normalizeBlock(key, block)
		}
	}

	return out
}

func normalizeBlock(key string, block map[string]any) map[string]any {
	renameKeys(block, blockKeyAliases)

	if id, _ := block["id"].(string); id == "" {
		block["id"] = key
	}

	blockType, _ := block["type"].(string)

	if _, ok := block["position"].(map[string]any); !ok {
		block["position"] = map[string]any{
			"x": number(block["position_x"]),
			"y": number(block["position_y"]),
		}
	}

	delete(block, "position_x")
	delete(block, "position_y")

	setDefault(block, "enabled", true)
	setDefault(block, "horizontal_handles", true)

	if definition, ok := blocks.Lookup(blockType); ok {
		setDefault(block, "is_wide", definition.IsWide)
		setDefault(block, "height", definition.Height)
	} else {
		setDefault(block, "is_wide", false)
		setDefault(block, "height", float64(95))
	}

	if _, ok := block["outputs"].(map[string]any); !ok {
		block["outputs"] = blocks.DefaultOutputs(blockType)
	}

	block["sub_blocks"] = normalizeSubBlocks(blockType, block["sub_blocks"])

	return block
}

func normalizeSubBlocks(blockType string, raw any) map[string]any {
	out := map[string]any{}

	values, ok := raw.(map[string]any)
	if !ok {
		return out
	}

	for key, value := range values {
		sub, isObject := value.(map[string]any)
		if !isObject || !looksLikeSubBlock(sub) {
			out[key] = map[string]any{
				"id":    key,
				"type":  blocks.InputType(blockType, key),
				"value": value,
			}

			continue
		}

		if id, _ := sub["id"].(string); id == "" {
			sub["id"] = key
		}

		if inputType, _ := sub["type"].(string); inputType == "" {
			sub["type"] = blocks.InputType(blockType, key)
		}

		if _, hasValue := sub["value"]; !hasValue {
			sub["value"] = nil
		}

		out[key] = sub
	}

	return out
}

func looksLikeSubBlock(sub map[string]any) bool {
	_, hasValue := sub["value"]
	_, hasType := sub["type"]

	return hasValue || hasType
}

func normalizeEdges(raw any) []any {
	list, ok := raw.([]any)
	if !ok {
		return []any{}
	}

	out := make([]any, 0, len(list))

	for _, value := range list {
		edge, isObject := value.(map[string]any)
		if !isObject {
			continue
		}

		renameKeys(edge, edgeKeyAliases)

		if handle, _ := edge["source_handle"].(string); handle == "" {
			edge["source_handle"] = models.DefaultSourceHandle
		}

		if handle, _ := edge["target_handle"].(string); handle == "" {
			edge["target_handle"] = models.DefaultTargetHandle
		}

		if id, _ := edge["id"].(string); id == "" {
			source, _ := edge["source"].(string)
			target, _ := edge["target"].(string)
			edge["id"] = source + "-" + target
		}

		out = append(out, edge)
	}

	return out
}

func normalizeMetadata(raw any, now time.Time) map[string]any {
	metadata, ok := raw.(map[string]any)
	if !ok {
		metadata = map[string]any{}
	}

	if created, _ := metadata["created_at"].(string); created != "" {
		if existing, _ := metadata["createdAt"].(string); existing == "" {
			metadata["createdAt"] = created
		}
	}

	delete(metadata, "created_at")
	delete(metadata, "updated_at")

	if version, _ := metadata["version"].(string); version == "" {
		metadata["version"] = models.DefaultStateVersion
	}

	stamp := models.FormatTimestamp(now)

	if created, _ := metadata["createdAt"].(string); created == "" {
		metadata["createdAt"] = stamp
	}

	metadata["updatedAt"] = stamp
	metadata["generatedBy"] = GeneratedBy

	return metadata
}

// renameKeys moves values from alias keys to their canonical key unless the
// canonical key is already set.
func renameKeys(object map[string]any, aliases map[string]string) {
	keys := make([]string, 0, len(aliases))
	for alias := range aliases {
		keys = append(keys, alias)
	}

	sort.Strings(keys)

	for _, alias := range keys {
		value, ok := object[alias]
		if !ok {
			continue
		}

		canonical := aliases[alias]
		if _, exists := object[canonical]; !exists {
			object[canonical] = value
		}

		delete(object, alias)
	}
}

func setDefault(object map[string]any, key string, value any) {
	if _, ok := object[key]; !ok {
		object[key] = value
	}
}

func number(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case int:
		return float64(typed)
	case string:
		parsed, err := strconv.ParseFloat(typed, 64)
		if err == nil {
			return parsed
		}
	case fmt.Stringer:
		parsed, err := strconv.ParseFloat(typed.String(), 64)
		if err == nil {
			return parsed
		}
	}

	return 0
}
