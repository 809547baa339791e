package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// Chunker splits document text into word-bounded chunks.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunks lazily yields the chunks of doc in sequence order.
	// Each range over the result re-splits the text.
	Chunks(doc *domain.Document) iter.Seq[domain.Chunk]

	// Process collects all chunks of doc.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
