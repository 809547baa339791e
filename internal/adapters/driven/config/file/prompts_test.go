package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lexis", "prompts"), store.Dir())
	assert.NoDirExists(t, store.Dir())
}

func TestDefaultPrompt_Answer(t *testing.T) {
	prompt, ok := DefaultPrompt(driven.PromptAnswer)

	require.True(t, ok)
	assert.Contains(t, prompt, "You are a legal AI assistant.")
	assert.Contains(t, prompt, "{{context}}")
	assert.Contains(t, prompt, "{{question}}")
	assert.Contains(t, prompt, "say so clearly")

	_, ok = DefaultPrompt("missing")
	assert.False(t, ok)
}

func TestPromptStore_SeedsDirectory(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)

	want, _ := DefaultPrompt(driven.PromptAnswer)
	assert.Equal(t, want, prompt)
	assert.FileExists(t, filepath.Join(dir, "answer.txt"))
	assert.FileExists(t, filepath.Join(dir, "README.md"))
}

func TestPromptStore_UserTemplateWins(t *testing.T) {
	dir := t.TempDir()
	custom := "Answer briefly.\n{{context}}\nQ: {{question}}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.txt"), []byte("\n"+custom+"\n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, custom, prompt)

	data, err := os.ReadFile(filepath.Join(dir, "answer.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Answer briefly.", "seeding must not overwrite user files")
}

func TestPromptStore_FallsBackToBuiltin(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"blank file", "  \n"},
		{"missing question", "Use this: {{context}}"},
		{"missing context", "Q: {{question}}"},
	}

	want, _ := DefaultPrompt(driven.PromptAnswer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.txt"), []byte(tt.content), 0600))

			store, err := NewPromptStore(dir)
			require.NoError(t, err)

			prompt, err := store.Load(driven.PromptAnswer)
			require.NoError(t, err)
			assert.Equal(t, want, prompt)
		})
	}
}

func TestPromptStore_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent")

	assert.EqualError(t, err, `unknown prompt "nonexistent"`)
}

func TestPromptStore_UnwritableDirUsesBuiltin(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store, err := NewPromptStore(filepath.Join(blocker, "prompts"))
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{context}}")
}

func TestPromptStore_PicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAnswer)
	require.NoError(t, err)

	file := filepath.Join(dir, "answer.txt")
	edited := "edited {{context}} {{question}}"
	require.NoError(t, os.WriteFile(file, []byte(edited), 0600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(file, later, later))

	prompt, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, edited, prompt)
}

func TestPromptStore_ConcurrentLoads(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Load(driven.PromptAnswer); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
