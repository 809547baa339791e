// Package chunker provides a word-bounded text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// DefaultMaxWords is the default number of words per chunk.
const DefaultMaxWords = 1000

// chunkNamespace scopes name-based chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c2b8e-4d0a-5c7e-9a3b-2e8d1f4c7a90")

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits document content into consecutive, non-overlapping
// groups of at most maxWords whitespace-delimited words.
type Processor struct {
	maxWords int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxWords sets the maximum number of words per chunk.
func WithMaxWords(n int) Option {
	return func(p *Processor) {
		p.maxWords = n
	}
}

// New creates a new chunker processor with the given options.
// A non-positive word budget returns domain.ErrInvalidConfiguration.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		maxWords: DefaultMaxWords,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.maxWords <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, p.maxWords)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// MaxWords returns the word budget per chunk.
func (p *Processor) MaxWords() int {
	return p.maxWords
}

// Chunks lazily yields the chunks of doc in sequence order.
func (p *Processor) Chunks(doc *domain.Document) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		seq := 0
		for text := range words(doc.Content, p.maxWords) {
			if !yield(newChunk(doc, seq, text)) {
				return
			}
			seq++
		}
	}
}

// Process collects all chunks of doc.
func (p *Processor) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for c := range p.Chunks(doc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Split returns the chunk texts of text with at most maxWords words each.
// Empty or whitespace-only text yields nothing.
func Split(text string, maxWords int) (iter.Seq[string], error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, maxWords)
	}
	return words(text, maxWords), nil
}

// ChunkID returns the deterministic ID of the chunk at seq in document docID.
func ChunkID(docID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docID+"#"+strconv.Itoa(seq))).String()
}

func words(text string, maxWords int) iter.Seq[string] {
	return func(yield func(string) bool) {
		group := make([]string, 0, min(maxWords, 256))
		for w := range strings.FieldsSeq(text) {
			group = append(group, w)
			if len(group) == maxWords {
				if !yield(strings.Join(group, " ")) {
					return
				}
				group = group[:0]
			}
		}
		if len(group) > 0 {
			yield(strings.Join(group, " "))
		}
	}
}

func newChunk(doc *domain.Document, seq int, text string) domain.Chunk {
	meta := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[domain.MetaWordCount] = len(strings.Fields(text))

	return domain.Chunk{
		ID:            ChunkID(doc.ID, seq),
		DocumentID:    doc.ID,
		Content:       text,
		SequenceIndex: seq,
		Metadata:      meta,
	}
}
