// File: internal/llmclient/client.go
package llmclient

import "context"

// GenerationRequest carries one text-generation call to a model backend.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	// ForceJSON asks the backend to constrain output to valid JSON.
	ForceJSON bool
	// Temperature overrides the configured default when positive.
	Temperature float64
}

// Client abstracts a remote LLM backend. Implementations handle transport,
// authentication and retry; callers bound the call through ctx.
type Client interface {
	GenerateContent(ctx context.Context, req GenerationRequest) (string, error)
}
