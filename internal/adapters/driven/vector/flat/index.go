package flat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("flat: index is closed")

// Index stores chunk/vector pairs in insertion order.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []driven.VectorEntry
	sqnorms   []float64
	positions map[string]int
	closed    bool
}

// New creates an empty index. The first inserted vector fixes its dimension.
func New() *Index {
	return &Index{positions: make(map[string]int)}
}

// Insert adds chunk/vector pairs. The batch is validated as a whole before
// anything is stored, so a failed call leaves the index unchanged.
// A chunk ID that is already present has its pair replaced in place.
func (idx *Index) Insert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidInput, len(chunks), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	if len(chunks) == 0 {
		return nil
	}

	dim := idx.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %q", domain.ErrInvalidInput, chunks[i].ID)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: chunk %q has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, chunks[i].ID, len(v), dim)
		}
		if chunks[i].ID == "" {
			return fmt.Errorf("%w: chunk without ID", domain.ErrInvalidInput)
		}
	}

	idx.dimension = dim
	for i, c := range chunks {
		entry := driven.VectorEntry{
			Chunk:  cloneChunk(c),
			Vector: slices.Clone(vectors[i]),
		}
		sq := squaredNorm(entry.Vector)

		if pos, ok := idx.positions[c.ID]; ok {
			idx.entries[pos] = entry
			idx.sqnorms[pos] = sq
			continue
		}
		idx.positions[c.ID] = len(idx.entries)
		idx.entries = append(idx.entries, entry)
		idx.sqnorms = append(idx.sqnorms, sq)
	}

	return nil
}

type scored struct {
	pos   int
	score float64
}

// Query returns the k most similar chunks by cosine similarity.
// Equal scores keep insertion order.
func (idx *Index) Query(_ context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, ErrClosed
	}
	if k <= 0 || len(idx.entries) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(vector), idx.dimension)
	}

	qsq := squaredNorm(vector)
	results := make([]scored, len(idx.entries))
	for i, e := range idx.entries {
		results[i] = scored{pos: i, score: cosine(vector, e.Vector, qsq, idx.sqnorms[i])}
	}

	slices.SortStableFunc(results, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(results))
	out := make([]domain.RetrievedChunk, k)
	for i := range k {
		out[i] = domain.RetrievedChunk{
			Chunk: cloneChunk(idx.entries[results[i].pos].Chunk),
			Score: results[i].score,
		}
	}
	return out, nil
}

// Delete removes pairs by chunk ID. Unknown IDs are ignored.
func (idx *Index) Delete(_ context.Context, chunkIDs ...string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}

	drop := make(map[int]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		if pos, ok := idx.positions[id]; ok {
			drop[pos] = true
		}
	}
	if len(drop) == 0 {
		return nil
	}

	entries := idx.entries[:0]
	sqnorms := idx.sqnorms[:0]
	clear(idx.positions)
	for i, e := range idx.entries {
		if drop[i] {
			continue
		}
		idx.positions[e.Chunk.ID] = len(entries)
		entries = append(entries, e)
		sqnorms = append(sqnorms, idx.sqnorms[i])
	}
	clear(idx.entries[len(entries):])
	idx.entries = entries
	idx.sqnorms = sqnorms

	return nil
}

// Len returns the number of stored pairs.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimensions returns the established dimension, zero before the first insert.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// Entries returns a copy of all pairs in insertion order.
func (idx *Index) Entries() []driven.VectorEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]driven.VectorEntry, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = driven.VectorEntry{Chunk: cloneChunk(e.Chunk), Vector: slices.Clone(e.Vector)}
	}
	return out
}

// Close releases the stored vectors. Close is idempotent.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.entries = nil
	idx.sqnorms = nil
	idx.positions = nil
	return nil
}

func squaredNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

// cosine takes squared norms so that a vector scored against itself is
// exactly 1: the dot product equals its squared norm and sqrt(n*n) is n.
// It returns zero when either vector has no magnitude.
func cosine(a, b []float32, asq, bsq float64) float64 {
	if asq == 0 || bsq == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return max(-1, min(1, dot/math.Sqrt(asq*bsq)))
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}
