package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect the vector index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Build the index from a corpus directory",
	Long: `Walks the directory recursively, extracts text from every PDF, image and
plain text file, splits it into chunks, embeds the chunks and saves the index
to the configured index path. Hidden files and directories are skipped.
Files that fail are reported and do not stop the build.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexBuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the saved index",
	Args:  cobra.NoArgs,
	RunE:  runIndexInfo,
}

var indexDocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the documents in the saved index",
	Args:  cobra.NoArgs,
	RunE:  runIndexDocs,
}

func init() {
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInfoCmd)
	indexCmd.AddCommand(indexDocsCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	ingest, corpus, err := r.Ingest(cmd.Context(), args[0], false)
	if err != nil {
		return err
	}
	defer corpus.Close()

	cmd.Printf("Indexing %s...\n", corpus.Root())
	report, err := ingest.Build(cmd.Context())
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	if report.Chunks == 0 {
		return errors.New("no text was extracted; index not saved")
	}

	if err := ingest.Save(cmd.Context()); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	settings, err := r.Resolved()
	if err == nil {
		cmd.Printf("Index saved to %s\n", settings.Index.Path)
	}
	return nil
}

func printReport(cmd *cobra.Command, report *driving.IngestReport) {
	cmd.Printf("Files:     %d\n", report.Files)
	cmd.Printf("Documents: %d\n", report.Documents)
	cmd.Printf("Chunks:    %d\n", report.Chunks)
	cmd.Printf("Skipped:   %d\n", report.Skipped)
	if report.Removed > 0 {
		cmd.Printf("Removed:   %d\n", report.Removed)
	}
	cmd.Printf("Failed:    %d\n", len(report.Failed))
	for _, uri := range slices.Sorted(maps.Keys(report.Failed)) {
		cmd.Printf("  %s: %v\n", uri, report.Failed[uri])
	}
}

func runIndexInfo(cmd *cobra.Command, _ []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	info, err := r.IndexInfo(cmd.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCorruptOrMissingIndex) {
			return fmt.Errorf("%w\nRun 'lexis index build <dir>' first", err)
		}
		return err
	}

	cmd.Println("Index")
	cmd.Println("=====")
	cmd.Printf("  Path:            %s\n", info.Path)
	cmd.Printf("  Embedding model: %s\n", info.EmbeddingModel)
	cmd.Printf("  Dimensions:      %d\n", info.Dimensions)
	cmd.Printf("  Documents:       %d\n", info.Documents)
	cmd.Printf("  Chunks:          %d\n", info.Chunks)
	return nil
}

func runIndexDocs(cmd *cobra.Command, _ []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	docs, err := r.Documents(cmd.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCorruptOrMissingIndex) {
			return fmt.Errorf("%w\nRun 'lexis index build <dir>' first", err)
		}
		return err
	}
	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}

	for _, doc := range docs {
		title := doc.Title
		if title == "" {
			title = doc.URI
		}
		cmd.Printf("  %s  %s\n", doc.ID[:min(8, len(doc.ID))], title)
	}
	cmd.Printf("\n%d documents\n", len(docs))
	return nil
}
