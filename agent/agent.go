// Package agent runs the model/tool loop: stream a model turn, execute
// any requested tools, fold the results back in, and repeat until the
// model answers in plain text or the iteration budget runs out.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tessello/tessello/llm"
	"github.com/tessello/tessello/schema"
	"github.com/tessello/tessello/tools"
)

// budgetExhaustedResponse stands in for a final answer when the model
// was still requesting tools at the iteration cap.
const budgetExhaustedResponse = "I was unable to produce a final answer within the allowed number of tool iterations."

// Agent couples a provider with a tool registry and drives the loop.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	engine   *tools.Engine
	logger   *slog.Logger
}

// New creates an agent for the given provider and registry.
func New(provider llm.Provider, registry *tools.Registry) *Agent {
	return &Agent{
		provider: provider,
		registry: registry,
		engine:   tools.NewEngine(registry),
		logger:   slog.Default(),
	}
}

// WithLogger sets the agent's logger; the execution engine inherits it.
func (a *Agent) WithLogger(logger *slog.Logger) *Agent {
	a.logger = logger
	a.engine.WithLogger(logger)
	return a
}

// Provider returns the underlying provider.
func (a *Agent) Provider() llm.Provider {
	return a.provider
}

// Chat sends the conversation for a single plain completion, with no
// tools offered.
func (a *Agent) Chat(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	resp, err := a.provider.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatWithTools runs the tool loop. Each iteration streams one model
// turn; requested tools run sequentially in the order the model issued
// them, and their results are folded back into the conversation using
// the provider's result encoding. The loop converges when a turn
// requests no tools. Hitting the iteration cap is a normal outcome
// reported through Result.BudgetExhausted, not an error.
func (a *Agent) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, opts Options) (Result, error) {
	working := make([]llm.ChatMessage, len(messages))
	copy(working, messages)

	dialect := opts.Dialect
	if dialect == schema.DialectAuto {
		dialect = a.provider.ToolDialect()
	}
	enc := a.provider.ResultEncoder()
	maxIterations := opts.maxIterations()

	var result Result

	for iter := 1; iter <= maxIterations; iter++ {
		result.Iterations = iter

		defs := opts.Policy.Filter(a.registry.Definitions())
		for i := range defs {
			defs[i].Parameters = schema.Translate(dialect, defs[i].Parameters)
		}

		a.logger.Debug("agent iteration", "iteration", iter, "tools", len(defs))

		stream, err := a.provider.ChatStream(ctx, working, defs)
		if err != nil {
			return result, err
		}

		var text strings.Builder
		var pending []llm.ToolCall
		for {
			chunk, err := stream.Recv(ctx)
			if errors.Is(err, llm.ErrStreamClosed) {
				break
			}
			if err != nil {
				stream.Close()
				result.Response = text.String()
				return result, err
			}
			switch chunk.Type {
			case llm.ChunkText:
				text.WriteString(chunk.Text)
			case llm.ChunkToolCall:
				pending = append(pending, *chunk.ToolCall)
			case llm.ChunkDone:
				if chunk.Usage != nil {
					result.Usage.Add(chunk.Usage)
				}
			}
		}

		if len(pending) == 0 {
			result.Response = text.String()
			return result, nil
		}

		working = append(working, enc.CallTurn(text.String(), pending)...)
		for _, call := range pending {
			a.logger.Debug("executing tool", "tool", call.Name, "call_id", call.ID)
			res, err := a.engine.Execute(ctx, call, opts.Progress)
			if err != nil {
				result.Response = text.String()
				return result, err
			}
			result.ToolResults = append(result.ToolResults, res)
			working = append(working, enc.ResultTurn(call, res.Serialize(), res.IsError))
		}
		result.Response = text.String()
	}

	result.BudgetExhausted = true
	if result.Response == "" {
		result.Response = budgetExhaustedResponse
	}
	a.logger.Warn("iteration budget exhausted", "iterations", maxIterations)
	return result, nil
}
