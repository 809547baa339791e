// Package ai builds the embedding and generation clients from settings and
// wraps them with timeouts, retries and rate limits.
package ai

import (
	"context"
	"fmt"

	geminiembed "github.com/custodia-labs/lexis/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/lexis/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/lexis/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/lexis/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/lexis/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/lexis/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lexis/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Services holds the AI services used by the pipeline, wrapped with the
// configured call policy.
type Services struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
}

// Close releases all resources held by Services.
func (s *Services) Close() {
	if s.Embedding != nil {
		s.Embedding.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
}

// NewServices creates both AI services from settings. Nothing is contacted;
// use a Prober to check connectivity up front.
func NewServices(settings domain.AppSettings) (*Services, error) {
	policy := NewCallPolicy(settings.Calls)

	embedding, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embedding == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured%s",
			domain.ErrInvalidConfiguration, settings.Embedding.Provider, keyHint(settings.Embedding.Provider))
	}

	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		embedding.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	if llm == nil {
		embedding.Close()
		return nil, fmt.Errorf("%w: llm provider %q is not configured%s",
			domain.ErrInvalidConfiguration, settings.LLM.Provider, keyHint(settings.LLM.Provider))
	}

	return &Services{
		Embedding: NewResilientEmbedding(embedding, policy),
		LLM:       NewResilientLLM(llm, policy),
	}, nil
}

func keyHint(p domain.AIProvider) string {
	if p.RequiresAPIKey() {
		return " (missing API key)"
	}
	return ""
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	dimensions := domain.EmbeddingDimensions()[settings.Model]

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
			BatchSize:  settings.BatchSize,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
			BatchSize:  settings.BatchSize,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(context.Background(), geminiembed.Config{
			APIKey:    settings.APIKey,
			BaseURL:   settings.BaseURL,
			Model:     settings.Model,
			BatchSize: settings.BatchSize,
		})

	case domain.AIProviderAnthropic, domain.AIProviderGroq:
		return nil, fmt.Errorf("%s does not support embeddings, use ollama, openai or gemini", settings.Provider)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGroq:
		baseURL := settings.BaseURL
		if baseURL == "" {
			baseURL = openaillm.GroqBaseURL
		}
		model := settings.Model
		if model == "" {
			model = openaillm.GroqDefaultModel
		}
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: baseURL,
			Model:   model,
			Name:    "groq",
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(context.Background(), geminillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
