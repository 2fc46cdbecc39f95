package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessello/tessello/llm"
	"github.com/tessello/tessello/schema"
	"github.com/tessello/tessello/tools"
)

// scriptTurn is one scripted model turn.
type scriptTurn struct {
	text  string
	calls []llm.ToolCall
	err   error
}

// fakeProvider replays scripted turns and records what it was asked.
type fakeProvider struct {
	turns   []scriptTurn
	turn    int
	dialect schema.Dialect
	encoder llm.ResultEncoder

	requests [][]llm.ChatMessage
	toolDefs [][]llm.ToolDefinition
}

func newFakeProvider(turns ...scriptTurn) *fakeProvider {
	return &fakeProvider{
		turns:   turns,
		dialect: schema.DialectOpenAI,
		encoder: llm.NativeEncoder{},
	}
}

func (p *fakeProvider) Name() string                     { return "fake" }
func (p *fakeProvider) Model() string                    { return "fake-1" }
func (p *fakeProvider) ToolDialect() schema.Dialect      { return p.dialect }
func (p *fakeProvider) ResultEncoder() llm.ResultEncoder { return p.encoder }

func (p *fakeProvider) next() scriptTurn {
	if p.turn >= len(p.turns) {
		return scriptTurn{text: "no script left"}
	}
	t := p.turns[p.turn]
	p.turn++
	return t
}

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.Response, error) {
	p.requests = append(p.requests, messages)
	p.toolDefs = append(p.toolDefs, defs)
	t := p.next()
	if t.err != nil {
		return llm.Response{}, t.err
	}
	return llm.Response{Content: t.text, ToolCalls: t.calls}, nil
}

func (p *fakeProvider) ChatStream(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (*llm.ChunkStream, error) {
	p.requests = append(p.requests, messages)
	p.toolDefs = append(p.toolDefs, defs)
	t := p.next()

	var deliver func(llm.StreamChunk)
	return llm.NewChunkStream(ctx,
		func(id string, fn func(llm.StreamChunk)) (func(), error) {
			deliver = fn
			return func() {}, nil
		},
		func(ctx context.Context, id string) error {
			go func() {
				if t.err != nil {
					deliver(llm.ErrorChunk(t.err))
					return
				}
				if t.text != "" {
					deliver(llm.TextChunk(t.text))
				}
				for _, call := range t.calls {
					deliver(llm.ToolCallChunk(call))
				}
				deliver(llm.DoneChunk(&llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
			}()
			return nil
		},
	)
}

// recorder registers a tool that appends executed call ids to order.
func recorderRegistry(order *[]string, fail map[string]bool) *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.NewFunc("probe", "records calls", nil,
		func(ctx context.Context, callID string, args json.RawMessage, progress tools.ProgressFunc) (tools.Result, error) {
			*order = append(*order, callID)
			if fail[callID] {
				return tools.Result{}, fmt.Errorf("probe %s failed", callID)
			}
			return tools.TextResult(callID, "probe output "+callID), nil
		}))
	return r
}

func TestChatWithToolsConvergesWithoutCalls(t *testing.T) {
	p := newFakeProvider(scriptTurn{text: "direct answer"})
	a := New(p, tools.NewRegistry())

	result, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("hi")}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "direct answer", result.Response)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolResults)
	assert.False(t, result.BudgetExhausted)
	assert.Equal(t, uint32(15), result.Usage.TotalTokens)
}

func TestChatWithToolsRunsToolsSequentially(t *testing.T) {
	p := newFakeProvider(
		scriptTurn{text: "checking", calls: []llm.ToolCall{
			{ID: "A", Name: "probe", Arguments: []byte(`{}`)},
			{ID: "B", Name: "probe", Arguments: []byte(`{}`)},
		}},
		scriptTurn{text: "final answer"},
	)

	var order []string
	a := New(p, recorderRegistry(&order, nil))

	result, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, order)
	assert.Equal(t, "final answer", result.Response)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.ToolResults, 2)
	assert.Equal(t, "A", result.ToolResults[0].ToolCallID)
	assert.Equal(t, "B", result.ToolResults[1].ToolCallID)
	assert.Equal(t, uint32(30), result.Usage.TotalTokens)

	// The second request carries the folded tool exchange.
	require.Len(t, p.requests, 2)
	second := p.requests[1]
	require.Len(t, second, 4) // user, assistant calls, two tool results
	assert.Equal(t, "assistant", second[1].Role)
	assert.Len(t, second[1].ToolCalls, 2)
	assert.Equal(t, "tool", second[2].Role)
	assert.Equal(t, "A", second[2].ToolCallID)
	assert.Equal(t, "tool", second[3].Role)
	assert.Equal(t, "B", second[3].ToolCallID)
}

func TestChatWithToolsDoesNotMutateInput(t *testing.T) {
	p := newFakeProvider(
		scriptTurn{calls: []llm.ToolCall{{ID: "A", Name: "probe", Arguments: []byte(`{}`)}}},
		scriptTurn{text: "done"},
	)
	var order []string
	a := New(p, recorderRegistry(&order, nil))

	messages := []llm.ChatMessage{llm.UserMessage("go")}
	_, err := a.ChatWithTools(context.Background(), messages, Options{})
	require.NoError(t, err)

	assert.Len(t, messages, 1)
}

func TestChatWithToolsBudgetExhausted(t *testing.T) {
	// Model keeps requesting the tool on every turn.
	call := llm.ToolCall{ID: "A", Name: "probe", Arguments: []byte(`{}`)}
	p := newFakeProvider(
		scriptTurn{calls: []llm.ToolCall{call}},
		scriptTurn{calls: []llm.ToolCall{call}},
		scriptTurn{calls: []llm.ToolCall{call}},
	)

	var order []string
	a := New(p, recorderRegistry(&order, nil))

	result, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{MaxIterations: 2})
	require.NoError(t, err)

	assert.True(t, result.BudgetExhausted)
	assert.Equal(t, 2, result.Iterations)
	assert.Len(t, result.ToolResults, 2)
	assert.NotEmpty(t, result.Response)
}

func TestChatWithToolsDefaultBudget(t *testing.T) {
	call := llm.ToolCall{ID: "A", Name: "probe", Arguments: []byte(`{}`)}
	turns := make([]scriptTurn, 10)
	for i := range turns {
		turns[i] = scriptTurn{calls: []llm.ToolCall{call}}
	}
	p := newFakeProvider(turns...)

	var order []string
	a := New(p, recorderRegistry(&order, nil))

	result, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{})
	require.NoError(t, err)

	assert.True(t, result.BudgetExhausted)
	assert.Equal(t, DefaultMaxIterations, result.Iterations)
}

func TestChatWithToolsAbsorbsToolFailure(t *testing.T) {
	p := newFakeProvider(
		scriptTurn{calls: []llm.ToolCall{{ID: "A", Name: "probe", Arguments: []byte(`{}`)}}},
		scriptTurn{text: "recovered"},
	)

	var order []string
	a := New(p, recorderRegistry(&order, map[string]bool{"A": true}))

	result, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.Response)
	require.Len(t, result.ToolResults, 1)
	assert.True(t, result.ToolResults[0].IsError)
}

func TestChatWithToolsTransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	p := newFakeProvider(scriptTurn{err: boom})
	a := New(p, tools.NewRegistry())

	_, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestChatWithToolsPolicyRestrictsDefinitions(t *testing.T) {
	p := newFakeProvider(scriptTurn{text: "done"})
	r := tools.NewRegistry()
	r.Register(tools.NewFunc("allowed", "ok", nil, nil))
	r.Register(tools.NewFunc("denied", "no", nil, nil))
	a := New(p, r)

	_, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{
		Policy: tools.Policy{Deny: []string{"denied"}},
	})
	require.NoError(t, err)

	require.Len(t, p.toolDefs, 1)
	require.Len(t, p.toolDefs[0], 1)
	assert.Equal(t, "allowed", p.toolDefs[0][0].Name)
}

func TestChatWithToolsResolvesAutoDialect(t *testing.T) {
	p := newFakeProvider(scriptTurn{text: "done"})
	p.dialect = schema.DialectGemini

	r := tools.NewRegistry()
	r.Register(tools.NewFunc("modal", "const param", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{"const": "fast"},
		},
	}, nil))
	a := New(p, r)

	_, err := a.ChatWithTools(context.Background(), []llm.ChatMessage{llm.UserMessage("go")}, Options{})
	require.NoError(t, err)

	require.Len(t, p.toolDefs, 1)
	params := p.toolDefs[0][0].Parameters
	mode := params["properties"].(map[string]any)["mode"].(map[string]any)
	assert.NotContains(t, mode, "const")
	assert.Equal(t, []any{"fast"}, mode["enum"])
}

func TestChatPlain(t *testing.T) {
	p := newFakeProvider(scriptTurn{text: "pong"})
	a := New(p, tools.NewRegistry())

	got, err := a.Chat(context.Background(), []llm.ChatMessage{llm.UserMessage("ping")})
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}
