package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		_ = SetFile("")
	})
}

func TestSetVerbose(t *testing.T) {
	reset(t)

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	assert.Equal(t, "[DEBUG] test message arg\n", buf.String())
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")

	assert.Empty(t, buf.String())
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Warn("skipped %s", "a.pdf")
	Error("failed %d", 2)

	assert.Equal(t, "[WARN] skipped a.pdf\n[ERROR] failed 2\n", buf.String())
}

func TestInfo_WhenVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("indexed %d chunks", 12)

	assert.Equal(t, "[INFO] indexed 12 chunks\n", buf.String())
}

func TestSection(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	Section("Ingest")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Section("Ingest")
	assert.Equal(t, "\n=== Ingest ===\n", buf.String())
}

func TestSetFile_WritesJSON(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	path := filepath.Join(t.TempDir(), "lexis.log")
	require.NoError(t, SetFile(path))

	Debug("not recorded")
	Info("built index")
	require.NoError(t, Sync())
	require.NoError(t, SetFile(""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "built index", entry["msg"])
	assert.Contains(t, entry, "timestamp")
}

func TestConcurrentAccess(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Debug("message %d", n)
			_ = IsVerbose()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, strings.Count(buf.String(), "[DEBUG]"))
}
