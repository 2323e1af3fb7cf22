package domain

import "context"

// GenerationOptions bound the output of a generation call. Temperature is
// kept low and fixed by the caller to favor deterministic, grounded answers.
type GenerationOptions struct {
	MaxTokens   int
	Temperature float64
}

// LLMClient defines the capability to send prompts to a generative model
// and receive textual responses.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the model output and whether generation finished.
type LLMResponse struct {
	Text string
	Done bool
}
