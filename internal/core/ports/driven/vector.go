package driven

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// VectorIndex stores chunks with their embedding vectors and answers
// similarity queries. Every stored chunk has exactly one vector.
type VectorIndex interface {
	// Insert appends chunk/vector pairs. The first vector ever inserted fixes
	// the index dimension; a batch containing any other dimension fails with
	// domain.ErrDimensionMismatch and leaves the index unchanged.
	Insert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error

	// Query returns up to k chunks ordered by descending cosine similarity.
	// Equal scores keep insertion order. An empty index returns no results.
	Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error)

	// Delete removes pairs by chunk ID. Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs ...string) error

	// Len returns the number of stored pairs.
	Len() int

	// Dimensions returns the established dimension, zero when empty.
	Dimensions() int

	// Entries returns a snapshot of all pairs in insertion order.
	Entries() []VectorEntry

	// Close releases resources.
	Close() error
}

// VectorEntry is one chunk/vector pair.
type VectorEntry struct {
	Chunk  domain.Chunk
	Vector []float32
}

// IndexStore persists a VectorIndex as a directory holding a vector payload
// and a chunk payload that are only valid together.
type IndexStore interface {
	// Save writes the index to dir, replacing any previous index there.
	Save(ctx context.Context, dir string, index VectorIndex, model string) error

	// Load reads an index saved by Save. A directory that does not hold a
	// complete, consistent index fails with domain.ErrCorruptOrMissingIndex.
	Load(ctx context.Context, dir string) (VectorIndex, *domain.IndexInfo, error)

	// Info reads the index description without loading vectors.
	Info(ctx context.Context, dir string) (*domain.IndexInfo, error)
}
