package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMTemperature  = "llm.temperature"
	keyLLMMaxTokens    = "llm.max_tokens"
	keyOCRTesseract    = "ocr.tesseract_path"
	keyOCRPoppler      = "ocr.poppler_path"
	keyOCRLanguage     = "ocr.language"
	keyChunkMaxWords   = "chunk.max_words"
	keyQAContextChars  = "qa.max_context_chars"
	keyQAAttachChars   = "qa.max_attachment_chars"
	keyQAHistoryTurns  = "qa.history_turns"
	keyRetrievalTopK   = "retrieval.top_k"
	keyIndexPath       = "index.path"
	keyIngestWorkers   = "ingest.workers"
	keyAITimeout       = "ai.timeout"
	keyAIMaxRetries    = "ai.max_retries"
	keyAIRequestsPerS  = "ai.requests_per_second"
	keyLogFile         = "log.file"
	envGroqAPIKey      = "GROQ_API_KEY"
	envGroqModel       = "GROQ_MODEL"
	envGroqTemperature = "GROQ_TEMPERATURE"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
)

// settingDef binds a config key to its environment variables and the
// AppSettings field it fills.
type settingDef struct {
	key    string
	env    []string
	kind   valueKind
	secret bool
	apply  func(s *domain.AppSettings, raw string) error
	show   func(s *domain.AppSettings) string
}

// providerKeyEnv is the API key variable consulted when no explicit key is set.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderGroq:      envGroqAPIKey,
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderGemini:    "GEMINI_API_KEY",
}

func settingDefs() []settingDef {
	return []settingDef{
		{key: keyEmbedProvider, env: []string{"EMBEDDING_PROVIDER"},
			apply: func(s *domain.AppSettings, v string) error {
				s.Embedding.Provider = domain.AIProvider(strings.ToLower(v))
				return nil
			},
			show: func(s *domain.AppSettings) string { return s.Embedding.Provider.String() }},
		{key: keyEmbedModel, env: []string{"EMBEDDING_MODEL"},
			apply: func(s *domain.AppSettings, v string) error { s.Embedding.Model = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.Embedding.Model }},
		{key: keyEmbedBaseURL, env: []string{"EMBEDDING_BASE_URL"},
			apply: func(s *domain.AppSettings, v string) error { s.Embedding.BaseURL = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.Embedding.BaseURL }},
		{key: keyEmbedAPIKey, env: []string{"EMBEDDING_API_KEY"}, secret: true,
			apply: func(s *domain.AppSettings, v string) error { s.Embedding.APIKey = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.Embedding.APIKey }},
		{key: keyEmbedBatchSize, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.Embedding.BatchSize }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.Embedding.BatchSize) }},
		{key: keyLLMProvider, env: []string{"LLM_PROVIDER"},
			apply: func(s *domain.AppSettings, v string) error {
				s.LLM.Provider = domain.AIProvider(strings.ToLower(v))
				return nil
			},
			show: func(s *domain.AppSettings) string { return s.LLM.Provider.String() }},
		{key: keyLLMModel, env: []string{"LLM_MODEL"},
			apply: func(s *domain.AppSettings, v string) error { s.LLM.Model = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.LLM.Model }},
		{key: keyLLMBaseURL, env: []string{"LLM_BASE_URL"},
			apply: func(s *domain.AppSettings, v string) error { s.LLM.BaseURL = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.LLM.BaseURL }},
		{key: keyLLMAPIKey, env: []string{"LLM_API_KEY"}, secret: true,
			apply: func(s *domain.AppSettings, v string) error { s.LLM.APIKey = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.LLM.APIKey }},
		{key: keyLLMTemperature, env: []string{"LLM_TEMPERATURE"}, kind: kindFloat,
			apply: floatField(func(s *domain.AppSettings) *float64 { return &s.LLM.Temperature }),
			show:  func(s *domain.AppSettings) string { return formatFloat(s.LLM.Temperature) }},
		{key: keyLLMMaxTokens, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.LLM.MaxTokens }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.LLM.MaxTokens) }},
		{key: keyOCRTesseract, env: []string{"TESSERACT_PATH"},
			apply: func(s *domain.AppSettings, v string) error { s.OCR.TesseractPath = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.OCR.TesseractPath }},
		{key: keyOCRPoppler, env: []string{"POPPLER_PATH"},
			apply: func(s *domain.AppSettings, v string) error { s.OCR.PopplerPath = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.OCR.PopplerPath }},
		{key: keyOCRLanguage, env: []string{"TESSERACT_LANG"},
			apply: func(s *domain.AppSettings, v string) error { s.OCR.Language = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.OCR.Language }},
		{key: keyChunkMaxWords, env: []string{"CHUNK_MAX_WORDS"}, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.Chunk.MaxWords }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.Chunk.MaxWords) }},
		{key: keyQAContextChars, env: []string{"QA_MAX_CONTEXT_CHARS"}, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.QA.MaxContextChars }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.QA.MaxContextChars) }},
		{key: keyQAAttachChars, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.QA.MaxAttachmentChars }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.QA.MaxAttachmentChars) }},
		{key: keyQAHistoryTurns, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.QA.HistoryTurns }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.QA.HistoryTurns) }},
		{key: keyRetrievalTopK, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.Retrieval.TopK }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.Retrieval.TopK) }},
		{key: keyIndexPath, env: []string{"LEXIS_INDEX_PATH"},
			apply: func(s *domain.AppSettings, v string) error { s.Index.Path = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.Index.Path }},
		{key: keyIngestWorkers, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.Ingest.Workers }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.Ingest.Workers) }},
		{key: keyAITimeout, kind: kindDuration,
			apply: func(s *domain.AppSettings, v string) error {
				d, err := parseDuration(v)
				if err != nil {
					return err
				}
				s.Calls.Timeout = d
				return nil
			},
			show: func(s *domain.AppSettings) string { return s.Calls.Timeout.String() }},
		{key: keyAIMaxRetries, kind: kindInt,
			apply: intField(func(s *domain.AppSettings) *int { return &s.Calls.MaxRetries }),
			show:  func(s *domain.AppSettings) string { return strconv.Itoa(s.Calls.MaxRetries) }},
		{key: keyAIRequestsPerS, kind: kindFloat,
			apply: floatField(func(s *domain.AppSettings) *float64 { return &s.Calls.RequestsPerSecond }),
			show:  func(s *domain.AppSettings) string { return formatFloat(s.Calls.RequestsPerSecond) }},
		{key: keyLogFile, env: []string{"LEXIS_LOG_FILE"},
			apply: func(s *domain.AppSettings, v string) error { s.Log.File = v; return nil },
			show:  func(s *domain.AppSettings) string { return s.Log.File }},
	}
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnv replaces the environment lookup, os.LookupEnv by default.
func WithEnv(lookup func(string) (string, bool)) SettingsOption {
	return func(s *SettingsService) {
		s.env = lookup
	}
}

// WithHomeDir sets the directory "~" expands to and the default index
// location is derived from.
func WithHomeDir(dir string) SettingsOption {
	return func(s *SettingsService) {
		s.home = dir
	}
}

// SettingsService resolves settings from defaults, the config store and the
// environment, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	probe       driven.ProviderProbe
	env         func(string) (string, bool)
	home        string
	validate    *validator.Validate
}

// NewSettingsService creates a new settings service.
func NewSettingsService(
	configStore driven.ConfigStore,
	probe driven.ProviderProbe,
	opts ...SettingsOption,
) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		probe:       probe,
		env:         os.LookupEnv,
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.home = home
		}
	}
	return s
}

// Get resolves and validates the current settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings, _, err := s.resolve(nil)
	return settings, err
}

// Set parses value for a known key and persists it. The value is checked
// against the full resolved settings before anything is written.
func (s *SettingsService) Set(key, value string) error {
	def, ok := findDef(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	typed, err := typedValue(def.kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfiguration, key, err)
	}

	if _, _, err := s.resolve(map[string]string{key: value}); err != nil {
		return err
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Unset removes a stored value so the default or environment applies.
func (s *SettingsService) Unset(key string) error {
	if _, ok := findDef(key); !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Unset(key); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	return nil
}

// Entries lists every known key with its resolved value and source.
// Entries are returned even when the settings fail validation.
func (s *SettingsService) Entries() ([]driving.Setting, error) {
	_, entries, err := s.resolve(nil)
	if entries == nil {
		return nil, err
	}
	return entries, nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	defaults := domain.DefaultAppSettings()
	defaults.Index.Path = filepath.Join(s.home, ".lexis", "index")
	defaults.Ingest.Workers = runtime.NumCPU()
	return defaults
}

// CheckProviders probes both providers concurrently.
func (s *SettingsService) CheckProviders(ctx context.Context) ([]driving.ProviderCheck, error) {
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}

	checks := []driving.ProviderCheck{
		{Role: "embedding", Provider: settings.Embedding.Provider, Model: settings.Embedding.Model},
		{Role: "llm", Provider: settings.LLM.Provider, Model: settings.LLM.Model},
	}
	if s.probe == nil {
		return checks, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		checks[0].Err = s.probe.ProbeEmbedding(ctx, &settings.Embedding)
	}()
	go func() {
		defer wg.Done()
		checks[1].Err = s.probe.ProbeLLM(ctx, &settings.LLM)
	}()
	wg.Wait()

	return checks, nil
}

// resolve builds AppSettings. overrides act as config file values and let
// Set check a value before persisting it.
func (s *SettingsService) resolve(overrides map[string]string) (*domain.AppSettings, []driving.Setting, error) {
	settings := s.GetDefaults()
	defs := settingDefs()
	sources := make(map[string]driving.Setting, len(defs))

	var errs []error
	for _, def := range defs {
		raw, src := s.lookup(def, overrides)
		if src.Source == driving.SourceDefault {
			continue
		}
		if err := def.apply(&settings, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", def.key, err))
			continue
		}
		sources[def.key] = src
	}

	if err := s.applyProviderDefaults(&settings, sources); err != nil {
		errs = append(errs, err)
	}
	settings.Index.Path = s.expandHome(settings.Index.Path)
	settings.Log.File = s.expandHome(settings.Log.File)

	entries := make([]driving.Setting, 0, len(defs))
	for _, def := range defs {
		entry, ok := sources[def.key]
		if !ok {
			entry = driving.Setting{Source: driving.SourceDefault}
		}
		entry.Key = def.key
		entry.Value = def.show(&settings)
		if def.secret {
			entry.Value = mask(entry.Value)
		}
		entries = append(entries, entry)
	}

	if len(errs) > 0 {
		return nil, entries, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, errors.Join(errs...))
	}
	if err := s.validate.Struct(settings); err != nil {
		return nil, entries, fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, describeValidation(err))
	}
	return &settings, entries, nil
}

// lookup returns the raw value for def: environment first, then overrides,
// then the config store.
func (s *SettingsService) lookup(def settingDef, overrides map[string]string) (string, driving.Setting) {
	for _, name := range def.env {
		if v, ok := s.env(name); ok && v != "" {
			return v, driving.Setting{Source: driving.SourceEnv, Env: name}
		}
	}
	if v, ok := overrides[def.key]; ok {
		return v, driving.Setting{Source: driving.SourceConfig}
	}
	if v, ok := s.configStore.Get(def.key); ok {
		return fmt.Sprint(v), driving.Setting{Source: driving.SourceConfig}
	}
	return "", driving.Setting{Source: driving.SourceDefault}
}

// applyProviderDefaults fills values whose default depends on the provider.
func (s *SettingsService) applyProviderDefaults(settings *domain.AppSettings, sources map[string]driving.Setting) error {
	groqKey, _ := s.env(envGroqAPIKey)

	if _, ok := sources[keyLLMProvider]; !ok && groqKey != "" {
		settings.LLM.Provider = domain.AIProviderGroq
	}

	if _, ok := sources[keyLLMModel]; !ok {
		if v, found := s.env(envGroqModel); found && v != "" && settings.LLM.Provider == domain.AIProviderGroq {
			settings.LLM.Model = v
			sources[keyLLMModel] = driving.Setting{Source: driving.SourceEnv, Env: envGroqModel}
		} else if model, found := domain.DefaultLLMModels()[settings.LLM.Provider]; found {
			settings.LLM.Model = model
		}
	}

	if _, ok := sources[keyLLMTemperature]; !ok && settings.LLM.Provider == domain.AIProviderGroq {
		if v, found := s.env(envGroqTemperature); found && v != "" {
			t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%s: not a number: %q", envGroqTemperature, v)
			}
			settings.LLM.Temperature = t
			sources[keyLLMTemperature] = driving.Setting{Source: driving.SourceEnv, Env: envGroqTemperature}
		}
	}

	if _, ok := sources[keyEmbedModel]; !ok {
		if model, found := domain.DefaultEmbeddingModels()[settings.Embedding.Provider]; found {
			settings.Embedding.Model = model
		}
	}

	if settings.LLM.APIKey == "" {
		if name, ok := providerKeyEnv[settings.LLM.Provider]; ok {
			if v, found := s.env(name); found && v != "" {
				settings.LLM.APIKey = v
				sources[keyLLMAPIKey] = driving.Setting{Source: driving.SourceEnv, Env: name}
			}
		}
	}
	if settings.Embedding.APIKey == "" {
		if name, ok := providerKeyEnv[settings.Embedding.Provider]; ok {
			if v, found := s.env(name); found && v != "" {
				settings.Embedding.APIKey = v
				sources[keyEmbedAPIKey] = driving.Setting{Source: driving.SourceEnv, Env: name}
			}
		}
	}
	return nil
}

func (s *SettingsService) expandHome(path string) string {
	if path == "~" {
		return s.home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(s.home, rest)
	}
	return path
}

func findDef(key string) (settingDef, bool) {
	for _, def := range settingDefs() {
		if def.key == key {
			return def, true
		}
	}
	return settingDef{}, false
}

// typedValue converts a command-line value to the type stored in the config file.
func typedValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(strings.TrimSpace(value))
	case kindFloat:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	case kindDuration:
		if _, err := parseDuration(value); err != nil {
			return nil, err
		}
		return strings.TrimSpace(value), nil
	default:
		return value, nil
	}
}

func intField(field func(*domain.AppSettings) *int) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(s) = n
		return nil
	}
}

func floatField(field func(*domain.AppSettings) *float64) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		*field(s) = f
		return nil
	}
}

// parseDuration accepts Go duration strings and bare integers as seconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", v)
	}
	return time.Duration(secs) * time.Second, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// describeValidation renders validator errors with config-style field paths.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "AppSettings.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s fails %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
