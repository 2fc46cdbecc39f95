package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertToGeminiMessagesExtractsSystem(t *testing.T) {
	messages := []ChatMessage{
		SystemMessage("be brief"),
		UserMessage("hi"),
		AssistantMessage("hello"),
	}

	contents, system := convertToGeminiMessages(messages)
	assert.Equal(t, "be brief", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}

func TestConvertToGeminiMessagesToolExchange(t *testing.T) {
	messages := []ChatMessage{
		UserMessage("look it up"),
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "lookup", Name: "lookup", Arguments: []byte(`{"q":"go"}`)},
		}},
		ToolResultMessage("lookup", `{"answer":42}`),
	}

	contents, _ := convertToGeminiMessages(messages)
	require.Len(t, contents, 3)

	call := contents[1]
	require.Len(t, call.Parts, 1)
	require.NotNil(t, call.Parts[0].FunctionCall)
	assert.Equal(t, "lookup", call.Parts[0].FunctionCall.Name)
	assert.Equal(t, "go", call.Parts[0].FunctionCall.Args["q"])

	result := contents[2]
	require.Len(t, result.Parts, 1)
	require.NotNil(t, result.Parts[0].FunctionResponse)
	assert.Equal(t, "lookup", result.Parts[0].FunctionResponse.Name)
	assert.Equal(t, float64(42), result.Parts[0].FunctionResponse.Response["answer"])
}

func TestConvertToGeminiMessagesPlainTextResult(t *testing.T) {
	// Non-JSON tool payloads are wrapped rather than dropped.
	messages := []ChatMessage{ToolResultMessage("lookup", "plain text")}

	contents, _ := convertToGeminiMessages(messages)
	require.Len(t, contents, 1)
	resp := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "plain text", resp.Response["result"])
}

func TestConvertToGeminiToolsRestricted(t *testing.T) {
	defs := []ToolDefinition{{
		Name:        "modal",
		Description: "has const and union params",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mode": map[string]any{"const": "fast"},
				"flag": map[string]any{
					"oneOf": []any{
						map[string]any{"const": "on"},
						map[string]any{"const": "off"},
						map[string]any{"type": "null"},
					},
				},
			},
			"required": []string{"mode"},
		},
	}}

	out := convertToGeminiTools(defs)
	require.Len(t, out, 1)
	require.Len(t, out[0].FunctionDeclarations, 1)

	decl := out[0].FunctionDeclarations[0]
	assert.Equal(t, "modal", decl.Name)
	require.NotNil(t, decl.Parameters)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"mode"}, decl.Parameters.Required)

	mode := decl.Parameters.Properties["mode"]
	require.NotNil(t, mode)
	assert.Equal(t, genai.TypeString, mode.Type)
	assert.Equal(t, []string{"fast"}, mode.Enum)

	flag := decl.Parameters.Properties["flag"]
	require.NotNil(t, flag)
	assert.Equal(t, []string{"on", "off", "null"}, flag.Enum)

	assert.Nil(t, convertToGeminiTools(nil))
}

func TestToGeminiSchemaArrayGetsItems(t *testing.T) {
	s := toGeminiSchema(map[string]any{"type": "array"})
	require.NotNil(t, s.Items)
	assert.Equal(t, genai.TypeString, s.Items.Type)

	s = toGeminiSchema(map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "number"},
	})
	assert.Equal(t, genai.TypeNumber, s.Items.Type)
}

func TestMapToGeminiType(t *testing.T) {
	assert.Equal(t, genai.TypeNumber, mapToGeminiType("integer"))
	assert.Equal(t, genai.TypeBoolean, mapToGeminiType("boolean"))
	assert.Equal(t, genai.TypeString, mapToGeminiType("unknown"))
}
