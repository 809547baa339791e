package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API or any compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGroq is the Groq OpenAI-compatible API.
	AIProviderGroq AIProvider = "groq"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGroq, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p != AIProviderOllama
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGroq:
		return "Groq (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider `validate:"required,oneof=ollama openai gemini"`

	// Model is the embedding model name.
	Model string `validate:"required"`

	// BaseURL is the API endpoint. Empty means the provider default.
	BaseURL string `validate:"omitempty,url"`

	// APIKey is the API key for cloud providers.
	APIKey string

	// BatchSize is the number of texts sent per embedding request.
	BatchSize int `validate:"gt=0"`
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider `validate:"required,oneof=ollama openai groq anthropic gemini"`

	// Model is the LLM model name.
	Model string `validate:"required"`

	// BaseURL is the API endpoint. Empty means the provider default.
	BaseURL string `validate:"omitempty,url"`

	// APIKey is the API key for cloud providers.
	APIKey string

	// Temperature is the sampling temperature. Low values favour determinism.
	Temperature float64 `validate:"gte=0,lte=2"`

	// MaxTokens caps the generated answer length.
	MaxTokens int `validate:"gt=0"`
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// OCRSettings holds overrides for the external extraction tools.
type OCRSettings struct {
	// TesseractPath is the tesseract binary. Empty means look it up on PATH.
	TesseractPath string

	// PopplerPath is the directory holding pdftotext and pdftoppm.
	// Empty means look them up on PATH.
	PopplerPath string

	// Language is the tesseract language code.
	Language string `validate:"required"`
}

// ChunkSettings holds chunking policy.
type ChunkSettings struct {
	// MaxWords is the maximum number of words per chunk.
	MaxWords int `validate:"gt=0"`
}

// QASettings holds prompt assembly budgets.
type QASettings struct {
	// MaxContextChars bounds the context block handed to the generator.
	MaxContextChars int `validate:"gt=0"`

	// MaxAttachmentChars bounds the attached document text.
	MaxAttachmentChars int `validate:"gt=0"`

	// HistoryTurns is how many recent conversation turns the prompt includes.
	HistoryTurns int `validate:"gte=0"`
}

// RetrievalSettings holds retrieval behaviour.
type RetrievalSettings struct {
	// TopK is the default number of chunks retrieved per question.
	TopK int `validate:"gt=0"`
}

// IndexSettings holds index location.
type IndexSettings struct {
	// Path is the directory the index is saved to and loaded from.
	Path string `validate:"required"`
}

// IngestSettings holds build-time parallelism.
type IngestSettings struct {
	// Workers is the number of files extracted concurrently.
	Workers int `validate:"gt=0"`
}

// CallSettings holds the policy applied to every external AI call.
type CallSettings struct {
	// Timeout bounds a single call.
	Timeout time.Duration `validate:"gt=0"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `validate:"gte=0"`

	// RequestsPerSecond limits call rate. Zero disables limiting.
	RequestsPerSecond float64 `validate:"gte=0"`
}

// LogSettings holds logging configuration.
type LogSettings struct {
	// File is an optional rotated JSON log file.
	File string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	OCR       OCRSettings
	Chunk     ChunkSettings
	QA        QASettings
	Retrieval RetrievalSettings
	Index     IndexSettings
	Ingest    IngestSettings
	Calls     CallSettings
	Log       LogSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Cloud API keys are left empty; they come from the environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BatchSize: 32,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultLLMModels()[AIProviderOllama],
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		OCR: OCRSettings{
			Language: "eng",
		},
		Chunk: ChunkSettings{
			MaxWords: 1000,
		},
		QA: QASettings{
			MaxContextChars:    8000,
			MaxAttachmentChars: 2000,
			HistoryTurns:       4,
		},
		Retrieval: RetrievalSettings{
			TopK: 4,
		},
		Index: IndexSettings{
			Path: "index",
		},
		Ingest: IngestSettings{
			Workers: 4,
		},
		Calls: CallSettings{
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGroq,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderGroq:      "llama-3.1-8b-instant",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
		AIProviderGemini:    "gemini-2.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
