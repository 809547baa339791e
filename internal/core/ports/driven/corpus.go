package driven

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// Corpus reads source files from a directory tree.
type Corpus interface {
	// Walk emits every regular, non-hidden file below the root, recursively.
	// Both channels are closed when the walk ends. Per-file read errors are
	// sent on the error channel and the walk continues.
	Walk(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch emits changes below the root until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	// Root returns the corpus root directory.
	Root() string

	// Close releases resources. Safe to call more than once.
	Close() error
}
