package driving

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// IngestReport summarises an ingestion run.
type IngestReport struct {
	// Files is the number of files seen.
	Files int

	// Documents is the number of files that produced text.
	Documents int

	// Chunks is the number of chunks inserted.
	Chunks int

	// Skipped counts files with no text or an unsupported type.
	Skipped int

	// Removed counts previously indexed documents that are no longer in
	// the corpus.
	Removed int

	// Failed maps file URI to the error that stopped it.
	Failed map[string]error
}

// IngestService builds and maintains the vector index from a corpus.
type IngestService interface {
	// Build walks the corpus and inserts every extracted chunk, dropping
	// chunks of documents that are gone or have changed. Per-file errors are recorded in the report, never returned.
	Build(ctx context.Context) (*IngestReport, error)

	// Apply re-ingests a single changed file, replacing its previous chunks.
	Apply(ctx context.Context, change domain.RawDocumentChange) error

	// Save persists the index to the configured directory.
	Save(ctx context.Context) error
}
