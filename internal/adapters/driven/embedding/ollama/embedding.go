// Package ollama provides an embedding service adapter for a local Ollama
// server.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/lexis/internal/adapters/driven/ai/httpjson"
	"github.com/custodia-labs/lexis/internal/adapters/driven/embedding"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "all-minilm"
	DefaultTimeout   = 60 * time.Second
	DefaultBatchSize = 32
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Model defaults to DefaultModel.
	Model string

	// Timeout bounds one request (default: 60s).
	Timeout time.Duration

	// Dimensions is the expected vector size. Zero learns it from the
	// first response.
	Dimensions int

	// BatchSize caps the texts sent per request (default: 32).
	BatchSize int
}

// EmbeddingService embeds text through /api/embed.
type EmbeddingService struct {
	api        *httpjson.Client
	model      string
	batchSize  int
	dimensions *embedding.Dimensions
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &EmbeddingService{
		api:        httpjson.New("ollama", cfg.BaseURL, httpjson.WithTimeout(cfg.Timeout)),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		dimensions: embedding.NewDimensions(cfg.Dimensions),
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends texts in requests of at most BatchSize inputs.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.Batched(ctx, texts, s.batchSize, s.embed)
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	if err := s.api.Post(ctx, "/api/embed", embedRequest{Model: s.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("ollama: empty embedding for input %d", i)
		}
		vectors[i] = embedding.Float32(e)
	}
	if err := s.dimensions.Observe(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size, zero until known.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions.Get()
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks the server is up and the model has been pulled.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	var tags tagsResponse
	if err := s.api.Get(ctx, "/api/tags", &tags); err != nil {
		return err
	}
	want := withTag(s.model)
	for _, m := range tags.Models {
		if withTag(m.Name) == want {
			return nil
		}
	}
	return fmt.Errorf("ollama: model %q is not pulled; run 'ollama pull %s'", s.model, s.model)
}

func withTag(model string) string {
	if strings.Contains(model, ":") {
		return model
	}
	return model + ":latest"
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
