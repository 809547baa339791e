package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/lexis/internal/core/domain"
)

func seededIndex(t *testing.T, texts ...string) *flat.Index {
	t.Helper()
	idx := flat.New()
	chunks := make([]domain.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{ID: text, DocumentID: "doc", Content: text, SequenceIndex: i}
		vectors[i] = embedWords(text)
	}
	require.NoError(t, idx.Insert(context.Background(), chunks, vectors))
	return idx
}

func TestRetrievalService_Retrieve(t *testing.T) {
	idx := seededIndex(t,
		"The contract is void if signed under duress.",
		"Tenants must give thirty days notice.",
		"Copyright lasts seventy years after death.",
	)
	svc := NewRetrievalService(&fakeEmbedder{}, idx, 2)

	results, err := svc.Retrieve(context.Background(), "when is a contract void", 1)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "The contract is void if signed under duress.", results[0].Chunk.Content)
}

func TestRetrievalService_DefaultK(t *testing.T) {
	idx := seededIndex(t, "a b", "c d", "e f")
	svc := NewRetrievalService(&fakeEmbedder{}, idx, 2)

	results, err := svc.Retrieve(context.Background(), "a", 0)

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrievalService_CachesQueryEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := NewRetrievalService(embedder, seededIndex(t, "lease terms"), 1)

	for range 3 {
		_, err := svc.Retrieve(context.Background(), "  lease  ", 1)
		require.NoError(t, err)
	}
	_, err := svc.Retrieve(context.Background(), "other question", 1)
	require.NoError(t, err)

	assert.EqualValues(t, 2, embedder.calls.Load())
}

func TestRetrievalService_EmptyIndex(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, flat.New(), 4)

	results, err := svc.Retrieve(context.Background(), "anything", 4)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrievalService_Errors(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, flat.New(), 4)
	_, err := svc.Retrieve(context.Background(), "   ", 4)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	failing := NewRetrievalService(&fakeEmbedder{err: domain.ErrEmbeddingUnavailable}, flat.New(), 4)
	_, err = failing.Retrieve(context.Background(), "question", 4)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	embedder := &fakeEmbedder{err: errors.New("boom")}
	uncached := NewRetrievalService(embedder, flat.New(), 4)
	_, _ = uncached.Retrieve(context.Background(), "question", 4)
	_, _ = uncached.Retrieve(context.Background(), "question", 4)
	assert.EqualValues(t, 2, embedder.calls.Load(), "failures are not cached")
}
