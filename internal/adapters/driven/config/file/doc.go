// Package file keeps user-editable state under ~/.lexis: the settings file
// (config.toml) and prompt template overrides (prompts/*.txt).
package file
