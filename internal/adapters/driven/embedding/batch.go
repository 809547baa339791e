// Package embedding holds the batching and vector bookkeeping shared by the
// embedding provider adapters in its subpackages.
package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// EmbedFunc embeds one request's worth of texts, returning one vector per
// text in input order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Batched calls embed on consecutive runs of at most size texts and joins
// the results. Each call is checked to return one non-empty vector per text.
func Batched(ctx context.Context, texts []string, size int, embed EmbedFunc) ([][]float32, error) {
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed texts %d-%d: got %d vectors", start, end-1, len(vectors))
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return nil, fmt.Errorf("embed texts %d-%d: empty vector for input %d", start, end-1, start+i)
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Float32 narrows a vector decoded from JSON.
func Float32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Dimensions tracks the vector size of a model. A zero size is learned
// from the first vectors observed.
type Dimensions struct {
	n atomic.Int64
}

// NewDimensions starts with a known size, or zero to learn it.
func NewDimensions(n int) *Dimensions {
	d := &Dimensions{}
	d.n.Store(int64(n))
	return d
}

// Get returns the size, zero until known.
func (d *Dimensions) Get() int {
	return int(d.n.Load())
}

// Observe learns the size from vectors and rejects vectors of any other size.
func (d *Dimensions) Observe(vectors [][]float32) error {
	for i, v := range vectors {
		d.n.CompareAndSwap(0, int64(len(v)))
		if want := d.Get(); len(v) != want {
			return fmt.Errorf("%w: vector %d has %d dimensions, model has %d",
				domain.ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}
