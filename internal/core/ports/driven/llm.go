package driven

import "context"

// LLMService turns a rendered prompt into an answer. Adapters exist for
// OpenAI-compatible APIs (OpenAI, Groq), Anthropic, Gemini and Ollama.
type LLMService interface {
	// Generate answers a single prompt.
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)

	// Chat answers the last user message given the earlier turns.
	// Adapters without a system role fold system messages into the
	// provider's own instruction field.
	Chat(ctx context.Context, messages []ChatMessage, opts GenerationOptions) (string, error)

	ModelName() string

	// Ping confirms the provider answers and the model exists.
	Ping(ctx context.Context) error

	Close() error
}

// GenerationOptions bound one generation call. Zero values leave the
// provider default in place, except Temperature, which is always sent.
type GenerationOptions struct {
	MaxTokens   int
	Temperature float64

	// Stop ends generation at the first of these sequences.
	Stop []string
}

// ChatMessage is one turn sent to Chat. Role is "system", "user" or
// "assistant".
type ChatMessage struct {
	Role    string
	Content string
}
