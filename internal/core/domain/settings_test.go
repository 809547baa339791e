package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAIProvider_IsValid tests valid and invalid providers
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{"ollama is valid", AIProviderOllama, true},
		{"openai is valid", AIProviderOpenAI, true},
		{"groq is valid", AIProviderGroq, true},
		{"anthropic is valid", AIProviderAnthropic, true},
		{"gemini is valid", AIProviderGemini, true},
		{"empty string is invalid", AIProvider(""), false},
		{"unknown provider is invalid", AIProvider("huggingface"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

// TestAIProvider_RequiresAPIKey tests only local providers skip API keys
func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderOllama.IsLocal())

	for _, p := range []AIProvider{AIProviderOpenAI, AIProviderGroq, AIProviderAnthropic, AIProviderGemini} {
		assert.True(t, p.RequiresAPIKey(), p.String())
		assert.False(t, p.IsLocal(), p.String())
	}
}

// TestAIProvider_Description tests human readable names
func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "Groq (cloud)", AIProviderGroq.Description())
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, "Unknown", AIProvider("x").Description())
}

// TestEmbeddingSettings_IsConfigured tests configuration checks
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.False(t, EmbeddingSettings{}.IsConfigured())
}

// TestLLMSettings_IsConfigured tests configuration checks
func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderGroq}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderGroq, APIKey: "gsk"}.IsConfigured())
}

// TestDefaultAppSettings tests defaults favour determinism and local providers
func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, AIProviderOllama, s.Embedding.Provider)
	assert.Equal(t, "all-minilm", s.Embedding.Model)
	assert.Equal(t, AIProviderOllama, s.LLM.Provider)
	assert.InDelta(t, 0.1, s.LLM.Temperature, 1e-9)
	assert.Equal(t, 1000, s.Chunk.MaxWords)
	assert.Equal(t, 2000, s.QA.MaxAttachmentChars)
	assert.Positive(t, s.QA.MaxContextChars)
	assert.Positive(t, s.Retrieval.TopK)
	assert.Positive(t, s.Calls.Timeout)
}

// TestDefaultModels_CoverProviders tests every provider has a default model
func TestDefaultModels_CoverProviders(t *testing.T) {
	for _, p := range AllEmbeddingProviders() {
		assert.NotEmpty(t, DefaultEmbeddingModels()[p], p.String())
	}
	for _, p := range AllLLMProviders() {
		assert.NotEmpty(t, DefaultLLMModels()[p], p.String())
	}
	assert.Equal(t, 384, EmbeddingDimensions()["all-minilm"])
}
