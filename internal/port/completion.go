package port

import (
	"context"
	"time"
)

// CompletionRequest carries one prompt for a text-generation provider.
type CompletionRequest struct {
	SystemPrompt    string
	UserPrompt      string
	MaxOutputTokens int
	Temperature     float64
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
	// Timeout bounds the call; zero means no per-call deadline.
	Timeout time.Duration
}

// CompletionResponse contains the generated text.
type CompletionResponse struct {
	Text  string
	Model string
}

// CompletionClient abstracts an LLM text-generation provider.
// Implementations must be safe for concurrent use and return errors
// classified by the completion package.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
