package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigFile is the settings file name inside the lexis directory.
const ConfigFile = "config.toml"

const configHeader = "# Lexis settings. Edit with 'lexis config set <key> <value>'.\n" +
	"# Environment variables override anything set here.\n\n"

// ConfigStore keeps settings in a TOML file. Dotted keys are stored as
// tables, so "llm.provider" is written as provider under [llm].
type ConfigStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

// DefaultDir returns ~/.lexis.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lexis"), nil
}

// NewConfigStore opens config.toml in dir, or in DefaultDir when dir is empty.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return NewConfigStoreAt(filepath.Join(dir, ConfigFile))
}

// NewConfigStoreAt opens the settings file at path. A missing file is an
// empty store; it is created on the first Set.
func NewConfigStoreAt(path string) (*ConfigStore, error) {
	s := &ConfigStore{path: path, values: map[string]any{}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	flatten(s.values, "", tables)
	return s, nil
}

// Get returns the stored value for key. TOML integers load as int64.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.write(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Unset removes key and rewrites the file.
func (s *ConfigStore) Unset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.write(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// Keys lists stored keys in sorted order.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Path returns the settings file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// write replaces the file through a temporary sibling. Caller holds mu.
func (s *ConfigStore) write() error {
	body, err := toml.Marshal(tables(s.values))
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(configHeader); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// flatten copies nested TOML tables into dst under dotted keys.
func flatten(dst map[string]any, prefix string, src map[string]any) {
	for k, v := range src {
		if prefix != "" {
			k = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(dst, k, table)
			continue
		}
		dst[k] = v
	}
}

// tables is the inverse of flatten. When a key is both a value and a
// table prefix, the value keeps its quoted dotted key.
func tables(flat map[string]any) map[string]any {
	root := map[string]any{}
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		parts := strings.Split(key, ".")
		node, ok := root, true
		for _, p := range parts[:len(parts)-1] {
			switch next := node[p].(type) {
			case nil:
				child := map[string]any{}
				node[p] = child
				node = child
			case map[string]any:
				node = next
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			root[key] = flat[key]
			continue
		}
		node[parts[len(parts)-1]] = flat[key]
	}
	return root
}
