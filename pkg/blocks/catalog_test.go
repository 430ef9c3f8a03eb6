package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	agent, ok := Lookup("agent")
	require.True(t, ok)
	assert.True(t, agent.IsWide)
	assert.InDelta(t, 120.0, agent.Height, 0.0001)
	assert.Equal(t, []string{"model"}, agent.Required)

	api, ok := Lookup("api")
	require.True(t, ok)
	assert.False(t, api.IsWide)
	assert.InDelta(t, 95.0, api.Height, 0.0001)

	_, ok = Lookup("teleporter")
	assert.False(t, ok)
}

func TestTypes_Sorted(t *testing.T) {
	types := Types()

	assert.Contains(t, types, "starter")
	assert.Contains(t, types, "tool")
	assert.IsNonDecreasing(t, types)
	assert.Len(t, All(), len(types))
}

func TestDefaultOutputs_ReturnsCopy(t *testing.T) {
	outputs := DefaultOutputs("starter")
	response, ok := outputs["response"].(map[string]any)
	require.True(t, ok)

	response["mutated"] = true

	fresh := DefaultOutputs("starter")
	freshResponse, ok := fresh["response"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, freshResponse, "mutated")

	assert.Equal(t, map[string]any{}, DefaultOutputs("unknown"))
}

func TestNewBlock(t *testing.T) {
	block := NewBlock("agent_1", "agent", "Analyst", 300, 120, map[string]any{
		"model":        "gpt-4",
		"systemPrompt": "Summarize",
		"custom":       "x",
	})

	assert.Equal(t, "agent_1", block.ID)
	assert.True(t, block.Enabled)
	assert.True(t, block.HorizontalHandles)
	assert.True(t, block.IsWide)
	assert.InDelta(t, 120.0, block.Height, 0.0001)
	assert.Equal(t, InputCombobox, block.SubBlocks["model"].Type)
	assert.Equal(t, InputLong, block.SubBlocks["systemPrompt"].Type)
	assert.Equal(t, InputShort, block.SubBlocks["custom"].Type)
	assert.Equal(t, "gpt-4", block.SubBlocks["model"].Value)
	assert.Equal(t, "string", block.Outputs["content"])
}

func TestIsKnownModel(t *testing.T) {
	assert.True(t, IsKnownModel("gpt-4"))
	assert.True(t, IsKnownModel("custom-byoi"))
	assert.False(t, IsKnownModel("gpt-2"))
}

func TestDefinition_HasSubBlock(t *testing.T) {
	api, ok := Lookup("api")
	require.True(t, ok)

	withURL := NewBlock("api_1", "api", "Fetch", 0, 0, map[string]any{"url": "https://example.com"})
	withEndpoint := NewBlock("api_2", "api", "Fetch", 0, 0, map[string]any{"endpoint": "https://example.com"})
	empty := NewBlock("api_3", "api", "Fetch", 0, 0, map[string]any{"url": ""})

	assert.True(t, api.HasSubBlock(withURL, "url"))
	assert.True(t, api.HasSubBlock(withEndpoint, "url"))
	assert.False(t, api.HasSubBlock(empty, "url"))
	assert.False(t, api.HasSubBlock(withURL, "method"))
}
