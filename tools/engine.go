package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessello/tessello/llm"
)

// Engine dispatches model tool calls against a registry. Failures are
// contained: an unknown tool, bad arguments, or a handler error all
// produce an error Result that flows back to the model. Only
// cancellation surfaces as a Go error.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{
		registry: registry,
		logger:   slog.Default(),
	}
}

// WithLogger sets the engine's logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Execute runs a single tool call. The returned error is non-nil only
// when execution was cancelled; every other failure is reported inside
// the Result so the conversation can continue.
func (e *Engine) Execute(ctx context.Context, call llm.ToolCall, progress ProgressFunc) (Result, error) {
	name := NormalizeName(call.Name)
	tool, ok := e.registry.Get(name)
	if !ok {
		e.logger.Warn("tool not found", "tool", name, "call_id", call.ID)
		return ErrorResult(call.ID, name, fmt.Errorf("tool not registered: %s", name)), nil
	}

	res, err := tool.Execute(ctx, call.ID, call.Arguments, progress)
	if err != nil {
		if isCancellation(ctx, err) {
			return Result{}, err
		}
		e.logger.Warn("tool execution failed", "tool", name, "call_id", call.ID, "error", err)
		return ErrorResult(call.ID, name, err), nil
	}
	if res.ToolCallID == "" {
		res.ToolCallID = call.ID
	}
	return res, nil
}

// ExecuteMany runs calls sequentially, in order. Each call is
// independent: a failed call becomes an error Result and the next call
// still runs. Cancellation aborts the sequence, returning the results
// gathered so far along with the error.
func (e *Engine) ExecuteMany(ctx context.Context, calls []llm.ToolCall, progress ProgressFunc) ([]Result, error) {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		res, err := e.Execute(ctx, call, progress)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
