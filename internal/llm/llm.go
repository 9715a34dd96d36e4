// Package llm provides interfaces and implementations for Large Language Model clients.
package llm

import (
	"context"
)

// GenerateOptions configures the LLM generation request.
type GenerateOptions struct {
	// Model specifies the LLM model to use (e.g., "gemini-2.5-flash", "llama3.2").
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic, 1.0 = creative).
	Temperature float32

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// JSONResponse asks the provider for a JSON-typed response where the
	// API supports it. Providers without structured output support treat
	// this as a hint only; callers must still validate the payload.
	JSONResponse bool
}

// LLM defines the interface for Large Language Model clients.
type LLM interface {
	// Generate sends a prompt to the LLM and returns the complete response.
	// It blocks until the full response is received, the context is
	// canceled, or an error occurs.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
