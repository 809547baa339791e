package driving

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// RetrievalService finds the chunks most similar to a question.
type RetrievalService interface {
	// Retrieve embeds the question and returns up to k chunks ordered by
	// descending similarity. k <= 0 uses the configured default.
	Retrieve(ctx context.Context, question string, k int) ([]domain.RetrievedChunk, error)
}
