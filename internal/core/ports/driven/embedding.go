package driven

import "context"

// EmbeddingService maps text to vectors. The same model and input always
// give the same vector, and every vector from one service has the same
// length. Adapters exist for Ollama, OpenAI-compatible APIs and Gemini.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order. Adapters
	// split large inputs into provider-sized requests.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length, or zero until the first response
	// when the model is not known in advance.
	Dimensions() int

	// ModelName is recorded in the index manifest so a later load can
	// detect a model change.
	ModelName() string

	// Ping confirms the provider answers and the model exists.
	Ping(ctx context.Context) error

	Close() error
}
