package llms

import (
	"context"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one unit of a streaming completion.
type StreamChunk struct {
	Text   string
	Tokens int
	Done   bool
	Error  error
}

// GenerateOptions tune a single completion call.
type GenerateOptions struct {
	// Model overrides the provider's configured model.
	Model string

	// Temperature overrides the configured temperature when non-nil.
	Temperature *float64

	// MaxTokens overrides the configured completion budget when > 0.
	MaxTokens int

	// JSONMode forces the provider to return a single JSON object.
	JSONMode bool
}

// Provider generates chat completions.
type Provider interface {
	// Generate returns a complete response for the given messages.
	Generate(ctx context.Context, messages []Message, opts *GenerateOptions) (string, Usage, error)

	// GenerateStreaming emits response chunks as they arrive. The
	// channel is closed after the final chunk.
	GenerateStreaming(ctx context.Context, messages []Message, opts *GenerateOptions) (<-chan StreamChunk, error)

	// ModelName returns the configured model identifier.
	ModelName() string

	// Close releases provider resources.
	Close() error
}
