// Package main provides the tessello CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tessello/tessello/cli"
)

var (
	// Global flags
	provider string
	maxIter  int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "tessello",
		Short: "Provider-agnostic LLM chat, streaming and tool calling",
		Long: `A CLI for talking to LLM backends through one interface.

Supports OpenAI, Anthropic, DeepSeek and Gemini with streaming responses
and a tool loop that lets the model call local tools.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 5, "Maximum tool loop iterations")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(streamCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliOptions() cli.Options {
	return cli.Options{
		Provider: provider,
		MaxIter:  maxIter,
		Verbose:  verbose,
	}
}

func askCmd() *cobra.Command {
	var systemPrompt string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Execute a single prompt with the tool loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], systemPrompt, cliOptions())
		},
	}

	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt")

	return cmd
}

func chatCmd() *cobra.Command {
	var systemPrompt string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), systemPrompt, cliOptions())
		},
	}

	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt")

	return cmd
}

func streamCmd() *cobra.Command {
	var systemPrompt string

	cmd := &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Stream a single completion to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Stream(context.Background(), args[0], systemPrompt, cliOptions())
		},
	}

	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers and their configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.Providers()
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List builtin tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools()
			return nil
		},
	}
}
