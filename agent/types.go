package agent

import (
	"github.com/tessello/tessello/llm"
	"github.com/tessello/tessello/schema"
	"github.com/tessello/tessello/tools"
)

// DefaultMaxIterations bounds the tool loop when Options leaves
// MaxIterations unset.
const DefaultMaxIterations = 5

// Options configures a single ChatWithTools run.
type Options struct {
	// MaxIterations caps the number of model round trips. Zero means
	// DefaultMaxIterations.
	MaxIterations int
	// Dialect selects the tool schema translation. DialectAuto defers
	// to the provider.
	Dialect schema.Dialect
	// Policy restricts which registered tools the model may see.
	Policy tools.Policy
	// Progress receives progress lines from executing tools. May be nil.
	Progress tools.ProgressFunc
}

func (o Options) maxIterations() int {
	if o.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return o.MaxIterations
}

// Result is the outcome of a tool loop run.
type Result struct {
	// Response is the model's final text.
	Response string
	// ToolResults holds every tool execution outcome, in order.
	ToolResults []tools.Result
	// Usage accumulates token usage across every round trip.
	Usage llm.TokenUsage
	// Iterations is the number of model round trips consumed.
	Iterations int
	// BudgetExhausted is set when the run stopped because the model was
	// still requesting tools at the iteration cap. This is a normal
	// outcome, not an error.
	BudgetExhausted bool
}
