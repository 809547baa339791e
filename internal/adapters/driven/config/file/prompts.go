package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed prompts/*.txt
var builtin embed.FS

// required lists the placeholders a template must keep to be usable.
var required = map[string][]string{
	driven.PromptAnswer: {"{{question}}", "{{context}}"},
}

const promptsReadme = `# Lexis prompts

Templates used when answering questions. Edit a file to change how
questions are put to the model; edits apply on the next question.

answer.txt placeholders:

  {{context}}   retrieved passages, then any attached file text
  {{question}}  the question
  {{history}}   earlier turns of the conversation (optional)

A template missing {{context}} or {{question}} is ignored. Delete a
file to get the built-in version back on the next run.
`

// PromptStore reads templates from a directory of <name>.txt files and
// falls back to the built-in copies. A file is re-read when its
// modification time changes.
type PromptStore struct {
	dir      string
	seedOnce sync.Once

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

type cachedPrompt struct {
	modTime time.Time
	text    string
}

// NewPromptStore creates a store over dir, or ~/.lexis/prompts when dir
// is empty. Nothing is written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(d, "prompts")
	}
	return &PromptStore{dir: dir, cache: map[string]cachedPrompt{}}, nil
}

// DefaultPrompt returns the built-in template for name.
func DefaultPrompt(name string) (string, bool) {
	data, err := builtin.ReadFile(path.Join("prompts", name+".txt"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Dir returns the template directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	def, known := DefaultPrompt(name)
	if !known {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	s.seedOnce.Do(s.seed)

	text, err := s.read(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return def, nil
	case err != nil:
		logger.Warn("prompt %s: %v; using built-in template", name, err)
		return def, nil
	case text == "":
		return def, nil
	}

	for _, p := range required[name] {
		if !strings.Contains(text, p) {
			logger.Warn("prompt %s: %s is missing %s; using built-in template",
				name, filepath.Join(s.dir, name+".txt"), p)
			return def, nil
		}
	}
	return text, nil
}

func (s *PromptStore) read(name string) (string, error) {
	file := filepath.Join(s.dir, name+".txt")
	info, err := os.Stat(file)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cache[name]; ok && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	s.cache[name] = cachedPrompt{modTime: info.ModTime(), text: text}
	return text, nil
}

// seed writes the built-in templates and a README into the directory so
// users have something to edit. Existing files are left alone; failures
// only mean the built-ins are used.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		logger.Debug("prompts: %v", err)
		return
	}

	entries, err := fs.ReadDir(builtin, "prompts")
	if err != nil {
		return
	}
	files := map[string][]byte{"README.md": []byte(promptsReadme)}
	for _, e := range entries {
		data, err := builtin.ReadFile(path.Join("prompts", e.Name()))
		if err == nil {
			files[e.Name()] = data
		}
	}

	for name, data := range files {
		target := filepath.Join(s.dir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := os.WriteFile(target, data, 0600); err != nil {
			logger.Debug("prompts: %v", err)
		}
	}
}
