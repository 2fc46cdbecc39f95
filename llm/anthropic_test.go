package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToAnthropicMessagesExtractsSystem(t *testing.T) {
	messages := []ChatMessage{
		SystemMessage("be brief"),
		UserMessage("hi"),
		AssistantMessage("hello"),
	}

	out, system := convertToAnthropicMessages(messages)
	assert.Equal(t, "be brief", system)
	require.Len(t, out, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, out[1].Role)
}

func TestConvertToAnthropicMessagesToolExchange(t *testing.T) {
	messages := []ChatMessage{
		UserMessage("look it up"),
		{Role: "assistant", Content: "checking", ToolCalls: []ToolCall{
			{ID: "c1", Name: "lookup", Arguments: []byte(`{"q":"go"}`)},
		}},
		ToolResultMessage("c1", "42"),
	}

	out, _ := convertToAnthropicMessages(messages)
	require.Len(t, out, 3)

	assistant := out[1]
	require.Len(t, assistant.Content, 2)
	require.NotNil(t, assistant.Content[1].OfToolUse)
	assert.Equal(t, "c1", assistant.Content[1].OfToolUse.ID)
	assert.Equal(t, "lookup", assistant.Content[1].OfToolUse.Name)

	// Tool results travel as user-role tool_result blocks.
	result := out[2]
	assert.Equal(t, anthropic.MessageParamRoleUser, result.Role)
	require.Len(t, result.Content, 1)
	require.NotNil(t, result.Content[0].OfToolResult)
	assert.Equal(t, "c1", result.Content[0].OfToolResult.ToolUseID)
}

func TestConvertToAnthropicTools(t *testing.T) {
	defs := []ToolDefinition{{
		Name:        "lookup",
		Description: "find things",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"q": map[string]any{"type": "string"},
			},
			"required": []string{"q"},
		},
	}}

	out := convertToAnthropicTools(defs)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "lookup", out[0].OfTool.Name)

	props, ok := out[0].OfTool.InputSchema.Properties.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "q")
	assert.Equal(t, []string{"q"}, out[0].OfTool.InputSchema.Required)

	assert.Nil(t, convertToAnthropicTools(nil))
}

func TestRequiredNames(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredNames(map[string]any{"required": []string{"a"}}))
	assert.Equal(t, []string{"a", "b"}, requiredNames(map[string]any{"required": []any{"a", "b"}}))
	assert.Nil(t, requiredNames(map[string]any{}))
}
