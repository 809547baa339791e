package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys set by the extractors and the chunker.
const (
	MetaSource    = "source"
	MetaMIMEType  = "mime_type"
	MetaFileKind  = "file_kind"
	MetaPageCount = "page_count"
	MetaOCR       = "ocr"
	MetaWordCount = "word_count"
)

// Document represents the extracted text of one corpus file.
// It is immutable once an extractor has produced it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text after extraction and trimming.
	// This is the complete document text before chunking.
	Content string

	// Metadata holds string or numeric attributes (source, page count).
	Metadata map[string]any

	// CreatedAt is when the document was extracted.
	CreatedAt time.Time
}

// Chunk represents a bounded slice of a document's words.
// Chunks are the unit embedded into and retrieved from the vector index.
type Chunk struct {
	// ID is the stable identifier shared by the chunk and its vector.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text of this chunk.
	Content string

	// SequenceIndex is the position within the document, starting at zero.
	SequenceIndex int

	// Metadata is inherited from the document and augmented per chunk.
	Metadata map[string]any
}

// DocumentID returns the deterministic ID of the document at uri.
// Re-extracting the same file yields the same ID.
func DocumentID(uri string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri)).String()
}

// Source returns the source file recorded in the chunk metadata,
// or an empty string when absent.
func (c Chunk) Source() string {
	if s, ok := c.Metadata[MetaSource].(string); ok {
		return s
	}
	return ""
}

// Reconstruct joins chunks of a single document in sequence order
// with single spaces. The input slice is not modified.
func Reconstruct(chunks []Chunk) string {
	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceIndex < ordered[j].SequenceIndex
	})

	parts := make([]string, 0, len(ordered))
	for _, c := range ordered {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, " ")
}
