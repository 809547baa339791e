package driving

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// SettingSource says where a resolved setting value came from.
type SettingSource string

// Setting sources, in increasing precedence.
const (
	SourceDefault SettingSource = "default"
	SourceConfig  SettingSource = "config"
	SourceEnv     SettingSource = "env"
)

// Setting is one resolved configuration entry.
type Setting struct {
	// Key is the dotted config key (e.g. "llm.provider").
	Key string

	// Value is the display value. Secrets are masked.
	Value string

	// Source is where Value came from.
	Source SettingSource

	// Env is the environment variable that supplied the value, if any.
	Env string
}

// SettingsService resolves application settings from defaults, the config
// file and the environment.
type SettingsService interface {
	// Get resolves and validates the current settings. Invalid settings
	// return domain.ErrInvalidConfiguration.
	Get() (*domain.AppSettings, error)

	// Set parses value for a known key and persists it to the config file.
	Set(key, value string) error

	// Unset removes a value from the config file.
	Unset(key string) error

	// Entries lists every known key with its resolved value and source.
	Entries() ([]Setting, error)

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// CheckProviders probes the embedding and generation providers named
	// by the current settings. It fails only when settings do not resolve;
	// provider failures are reported per check.
	CheckProviders(ctx context.Context) ([]ProviderCheck, error)
}

// ProviderCheck is the outcome of probing one provider.
type ProviderCheck struct {
	// Role is "embedding" or "llm".
	Role string

	Provider domain.AIProvider
	Model    string

	// Err is nil when the provider answered.
	Err error
}
