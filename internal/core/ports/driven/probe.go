package driven

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// ProviderProbe checks that configured AI providers answer before a long
// ingest or evaluation run depends on them.
type ProviderProbe interface {
	// ProbeEmbedding connects to the embedding provider and confirms the
	// model is usable. An unconfigured provider is not an error.
	ProbeEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error

	// ProbeLLM does the same for the generation provider.
	ProbeLLM(ctx context.Context, settings *domain.LLMSettings) error
}
