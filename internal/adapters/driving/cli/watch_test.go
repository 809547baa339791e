package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	return cmd, buf
}

func TestWatchCmd_Flags(t *testing.T) {
	flag := watchCmd.Flags().Lookup("debounce")
	require.NotNil(t, flag)
	assert.Equal(t, "2s", flag.DefValue)
}

func TestWatchLoop_SavesAfterDebounce(t *testing.T) {
	ingest := &mockIngest{}
	changes := make(chan domain.RawDocumentChange)
	cmd, buf := newTestCommand()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchLoop(ctx, cmd, ingest, changes, 10*time.Millisecond)
		close(done)
	}()

	changes <- domain.RawDocumentChange{Type: domain.ChangeCreated, Document: domain.RawDocument{URI: "a.txt"}}
	changes <- domain.RawDocumentChange{Type: domain.ChangeDeleted, Document: domain.RawDocument{URI: "b.txt"}}

	// Changes must settle before the save.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Len(t, ingest.applied, 2)
	assert.Equal(t, 1, ingest.saves)
	assert.Contains(t, buf.String(), "created a.txt")
	assert.Contains(t, buf.String(), "deleted b.txt")
}

func TestWatchLoop_FlushesOnCancel(t *testing.T) {
	ingest := &mockIngest{}
	changes := make(chan domain.RawDocumentChange, 1)
	cmd, _ := newTestCommand()

	changes <- domain.RawDocumentChange{Type: domain.ChangeUpdated, Document: domain.RawDocument{URI: "a.txt"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchLoop(ctx, cmd, ingest, changes, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return false
		default:
		}
		return len(changes) == 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, ingest.saves)
}

func TestWatchLoop_NothingToSave(t *testing.T) {
	ingest := &mockIngest{}
	changes := make(chan domain.RawDocumentChange)
	close(changes)
	cmd, _ := newTestCommand()

	watchLoop(context.Background(), cmd, ingest, changes, time.Millisecond)

	assert.Zero(t, ingest.saves)
}

func TestWatchLoop_FailedApplyIsNotSaved(t *testing.T) {
	ingest := &mockIngest{applyErr: errors.New("extraction failed")}
	changes := make(chan domain.RawDocumentChange, 1)
	changes <- domain.RawDocumentChange{Type: domain.ChangeCreated, Document: domain.RawDocument{URI: "a.pdf"}}
	close(changes)
	cmd, _ := newTestCommand()

	watchLoop(context.Background(), cmd, ingest, changes, time.Millisecond)

	assert.Zero(t, ingest.saves)
}

func TestWatchCmd_CatchesUpAndWatches(t *testing.T) {
	m := setupTestRuntime(t)
	m.ingest.report = &driving.IngestReport{Files: 1, Documents: 1, Chunks: 2, Failed: map[string]error{}}
	m.corpus.changes = make(chan domain.RawDocumentChange, 1)
	m.corpus.changes <- domain.RawDocumentChange{Type: domain.ChangeUpdated, Document: domain.RawDocument{URI: "a.txt"}}
	close(m.corpus.changes)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"watch", "/corpus"})

	require.NoError(t, rootCmd.Execute())

	assert.True(t, m.resume)
	assert.Len(t, m.ingest.applied, 1)
	// One save after the catch-up build, one for the change.
	assert.Equal(t, 2, m.ingest.saves)
	assert.Contains(t, buf.String(), "Watching /corpus")
}

func TestWatchCmd_SavesWhenCatchUpOnlyRemoves(t *testing.T) {
	m := setupTestRuntime(t)
	m.ingest.report = &driving.IngestReport{Removed: 1, Failed: map[string]error{}}
	m.corpus.changes = make(chan domain.RawDocumentChange)
	close(m.corpus.changes)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"watch", "/corpus"})

	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, 1, m.ingest.saves)
	assert.Contains(t, buf.String(), "Removed:   1")
}
