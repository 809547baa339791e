package driven

import (
	"context"
	"strings"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// Normaliser extracts plain text from one kind of file.
// Each normaliser serves exactly one domain.FileKind.
type Normaliser interface {
	// Kind returns the file kind this normaliser extracts.
	Kind() domain.FileKind

	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise extracts a document from raw bytes.
	// Unreadable or corrupt input returns domain.ErrExtractionFailure.
	// Input that holds no text is not an error: the result has empty
	// content and a warning.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of extraction.
// Chunking is handled by the Chunker.
type NormaliseResult struct {
	// Document is the extracted document with trimmed Content.
	Document domain.Document

	// Warnings are recoverable conditions met during extraction
	// (unsupported type, no text found).
	Warnings []string
}

// HasText returns true if extraction produced any text.
func (r *NormaliseResult) HasText() bool {
	return r != nil && strings.TrimSpace(r.Document.Content) != ""
}
