// Command execution for CLI commands.
//
// Information Hiding:
// - Provider setup hidden
// - Agent wiring hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tessello/tessello/agent"
	"github.com/tessello/tessello/config"
	"github.com/tessello/tessello/llm"
	"github.com/tessello/tessello/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	MaxIter  int
	Verbose  bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		MaxIter: agent.DefaultMaxIterations,
		Verbose: false,
	}
}

// Ask executes a single prompt with the tool loop and prints the answer.
func Ask(ctx context.Context, prompt, systemPrompt string, opts Options) error {
	a, err := buildAgent(opts)
	if err != nil {
		return err
	}

	messages := seedMessages(systemPrompt, prompt)
	result, err := a.ChatWithTools(ctx, messages, agent.Options{
		MaxIterations: opts.MaxIter,
		Progress:      progressPrinter(opts.Verbose),
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", result.Response)
	printRunStats(result, opts.Verbose)
	return nil
}

// Chat starts an interactive chat session with the tool loop.
func Chat(ctx context.Context, systemPrompt string, opts Options) error {
	a, err := buildAgent(opts)
	if err != nil {
		return err
	}

	fmt.Printf("Chat with %s (%s). Type 'exit' to quit.\n\n",
		a.Provider().Name(), a.Provider().Model())

	var history []llm.ChatMessage
	if systemPrompt != "" {
		history = append(history, llm.SystemMessage(systemPrompt))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		history = append(history, llm.UserMessage(input))
		result, err := a.ChatWithTools(ctx, history, agent.Options{
			MaxIterations: opts.MaxIter,
			Progress:      progressPrinter(opts.Verbose),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			history = history[:len(history)-1]
			continue
		}

		fmt.Printf("\n%s\n\n", result.Response)
		printRunStats(result, opts.Verbose)
		history = append(history, llm.AssistantMessage(result.Response))
	}

	return scanner.Err()
}

// Stream executes a single prompt and prints text chunks as they arrive.
func Stream(ctx context.Context, prompt, systemPrompt string, opts Options) error {
	provider, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}

	messages := seedMessages(systemPrompt, prompt)
	stream, err := provider.ChatStream(ctx, messages, nil)
	if err != nil {
		return err
	}

	for {
		chunk, err := stream.Recv(ctx)
		if errors.Is(err, llm.ErrStreamClosed) {
			break
		}
		if err != nil {
			stream.Close()
			fmt.Println()
			return err
		}
		switch chunk.Type {
		case llm.ChunkText:
			fmt.Print(chunk.Text)
		case llm.ChunkDone:
			fmt.Println()
			if opts.Verbose && chunk.Usage != nil {
				fmt.Printf("\n(%d tokens)\n", chunk.Usage.TotalTokens)
			}
		}
	}
	return nil
}

// Providers lists the supported providers and whether each is configured.
func Providers() {
	fmt.Println("Supported providers:")
	fmt.Println()
	for _, name := range config.SupportedProviders() {
		model, err := config.ModelFor(name)
		if err != nil {
			continue
		}
		status := "not configured"
		if _, err := config.APIKeyFor(name); err == nil {
			status = "ready"
		}
		fmt.Printf("  %-10s %-30s %s\n", name, model, status)
	}
}

// ListTools lists the builtin tools.
func ListTools() {
	registry := tools.NewRegistry()
	RegisterBuiltins(registry, DefaultCapabilities())

	fmt.Println("Available tools:")
	fmt.Println()
	for _, meta := range registry.List() {
		fmt.Printf("  %s\n", meta.Name)
		fmt.Printf("    %s\n", meta.Description)
		fmt.Println()
	}
}

// Helper functions

func buildAgent(opts Options) (*agent.Agent, error) {
	provider, err := createProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	RegisterBuiltins(registry, DefaultCapabilities())

	return agent.New(provider, registry).WithLogger(newLogger(opts.Verbose)), nil
}

func createProvider(providerName string) (llm.Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(settings.LLM.Temperature).
		APIKey(apiKey)
}

func seedMessages(systemPrompt, prompt string) []llm.ChatMessage {
	var messages []llm.ChatMessage
	if systemPrompt != "" {
		messages = append(messages, llm.SystemMessage(systemPrompt))
	}
	return append(messages, llm.UserMessage(prompt))
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func progressPrinter(verbose bool) tools.ProgressFunc {
	if !verbose {
		return nil
	}
	return func(message string) {
		fmt.Fprintf(os.Stderr, "  [tool] %s\n", message)
	}
}

func printRunStats(result agent.Result, verbose bool) {
	if !verbose {
		return
	}
	fmt.Printf("(%d iterations, %d tool calls, %d tokens)\n",
		result.Iterations, len(result.ToolResults), result.Usage.TotalTokens)
	if result.BudgetExhausted {
		fmt.Println("(iteration budget exhausted)")
	}
}
