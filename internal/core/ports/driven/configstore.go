package driven

// ConfigStore holds the settings a user has set explicitly, keyed by
// dotted name ("llm.provider"). Values keep the Go type they were set
// with; defaults and environment overrides live elsewhere.
type ConfigStore interface {
	Get(key string) (any, bool)

	// Set stores value and persists it before returning.
	Set(key string, value any) error

	// Unset removes key so its default applies again. Removing a missing
	// key is not an error.
	Unset(key string) error

	// Keys lists the stored keys in sorted order.
	Keys() []string

	// Path names where values are persisted, for display.
	Path() string
}
