package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// flushTimeout bounds the final save after the watch is cancelled.
const flushTimeout = 30 * time.Second

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the index in sync with a corpus directory",
	Long: `Brings the saved index up to date with the directory, then re-ingests
files as they are created, modified or deleted. The index is saved once
changes have settled for the debounce interval, and again on exit.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before saving")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	ingest, corpus, err := r.Ingest(ctx, args[0], true)
	if err != nil {
		return err
	}
	defer corpus.Close()

	cmd.Printf("Indexing %s...\n", corpus.Root())
	report, err := ingest.Build(ctx)
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	if report.Chunks > 0 || report.Removed > 0 {
		if err := ingest.Save(ctx); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}
	}

	changes, err := corpus.Watch(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", corpus.Root())

	watchLoop(ctx, cmd, ingest, changes, watchDebounce)
	return nil
}

// watchLoop applies changes until ctx is done or changes is closed.
// The index is saved after debounce without further changes, and once
// more before returning if anything is unsaved.
func watchLoop(
	ctx context.Context,
	cmd *cobra.Command,
	ingest driving.IngestService,
	changes <-chan domain.RawDocumentChange,
	debounce time.Duration,
) {
	timer := time.NewTimer(debounce)
	timer.Stop()
	dirty := false

	save := func(saveCtx context.Context) {
		if !dirty {
			return
		}
		if err := ingest.Save(saveCtx); err != nil {
			logger.Error("saving index: %v", err)
			return
		}
		dirty = false
		cmd.Println("Index saved.")
	}

	flush := func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		save(flushCtx)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case change, ok := <-changes:
			if !ok {
				flush()
				return
			}
			if err := ingest.Apply(ctx, change); err != nil {
				logger.Warn("%s %s: %v", change.Type, change.Document.URI, err)
				continue
			}
			cmd.Printf("%s %s\n", change.Type, change.Document.URI)
			dirty = true
			timer.Reset(debounce)
		case <-timer.C:
			save(ctx)
		}
	}
}
