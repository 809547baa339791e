package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

const (
	queryCacheTTL     = 15 * time.Minute
	queryCacheCleanup = 30 * time.Minute
)

// RetrievalService embeds questions and queries the vector index.
// Query embeddings are memoised so repeated questions skip the embedding call.
type RetrievalService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	topK     int
	vectors  *cache.Cache
}

// NewRetrievalService creates a retrieval service. topK is used when a
// caller passes k <= 0.
func NewRetrievalService(embedder driven.EmbeddingService, index driven.VectorIndex, topK int) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		topK:     topK,
		vectors:  cache.New(queryCacheTTL, queryCacheCleanup),
	}
}

// Retrieve returns up to k chunks ordered by descending similarity.
func (s *RetrievalService) Retrieve(ctx context.Context, question string, k int) ([]domain.RetrievedChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = s.topK
	}

	vector, err := s.embed(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	logger.Debug("retrieved %d chunks for %q (k=%d)", len(results), question, k)
	return results, nil
}

func (s *RetrievalService) embed(ctx context.Context, question string) ([]float32, error) {
	key := s.embedder.ModelName() + "\x00" + question
	if cached, ok := s.vectors.Get(key); ok {
		logger.Debug("query embedding cache hit")
		return slices.Clone(cached.([]float32)), nil
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	s.vectors.SetDefault(key, slices.Clone(vector))
	return vector, nil
}
