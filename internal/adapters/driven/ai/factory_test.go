package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

func TestCreateEmbeddingService_Unconfigured(t *testing.T) {
	for name, settings := range map[string]*domain.EmbeddingSettings{
		"nil":              nil,
		"empty":            {},
		"key missing":      {Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small"},
		"unknown provider": {Provider: "cohere", APIKey: "k"},
	} {
		t.Run(name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(settings)
			require.NoError(t, err)
			assert.Nil(t, svc)
		})
	}
}

func TestCreateEmbeddingService_Providers(t *testing.T) {
	for _, settings := range []domain.EmbeddingSettings{
		{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"},
		{Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small", APIKey: "k"},
		{Provider: domain.AIProviderGemini, Model: "text-embedding-004", APIKey: "k"},
	} {
		t.Run(string(settings.Provider), func(t *testing.T) {
			svc, err := CreateEmbeddingService(&settings)
			require.NoError(t, err)
			require.NotNil(t, svc)
			defer svc.Close()

			assert.Equal(t, settings.Model, svc.ModelName())
		})
	}
}

func TestCreateEmbeddingService_GenerationOnlyProviders(t *testing.T) {
	for _, p := range []domain.AIProvider{domain.AIProviderAnthropic, domain.AIProviderGroq} {
		svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{Provider: p, APIKey: "k"})
		assert.Nil(t, svc)
		assert.ErrorContains(t, err, string(p)+" does not support embeddings")
	}
}

func TestCreateLLMService(t *testing.T) {
	svc, err := CreateLLMService(nil)
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateLLMService(&domain.LLMSettings{Provider: domain.AIProviderGroq})
	require.NoError(t, err)
	assert.Nil(t, svc, "groq without a key is not configured")

	models := map[domain.AIProvider][2]string{
		domain.AIProviderOllama:    {"llama3.2", "llama3.2"},
		domain.AIProviderOpenAI:    {"gpt-4o-mini", "gpt-4o-mini"},
		domain.AIProviderGroq:      {"", "llama-3.1-8b-instant"},
		domain.AIProviderAnthropic: {"claude-3-5-haiku-latest", "claude-3-5-haiku-latest"},
		domain.AIProviderGemini:    {"gemini-2.5-flash", "gemini-2.5-flash"},
	}
	for p, m := range models {
		t.Run(string(p), func(t *testing.T) {
			svc, err := CreateLLMService(&domain.LLMSettings{Provider: p, Model: m[0], APIKey: "k"})
			require.NoError(t, err)
			require.NotNil(t, svc)
			defer svc.Close()

			assert.Equal(t, m[1], svc.ModelName())
		})
	}
}

func TestNewServices_WrapsWithCallPolicy(t *testing.T) {
	svcs, err := NewServices(domain.DefaultAppSettings())
	require.NoError(t, err)
	defer svcs.Close()

	assert.IsType(t, &ResilientEmbedding{}, svcs.Embedding)
	assert.IsType(t, &ResilientLLM{}, svcs.LLM)
	assert.Equal(t, "all-minilm", svcs.Embedding.ModelName())
	assert.Equal(t, "llama3.2", svcs.LLM.ModelName())

	(&Services{}).Close()
}

func TestNewServices_MissingAPIKey(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.LLM.Provider = domain.AIProviderGroq
	settings.LLM.Model = "llama-3.1-8b-instant"
	settings.Calls.Timeout = time.Second

	_, err := NewServices(settings)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "missing API key")
}
