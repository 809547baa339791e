package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestOptions configures ingestion.
type IngestOptions struct {
	// Workers is the number of files extracted concurrently.
	Workers int

	// BatchSize is the number of chunk texts per embedding request.
	BatchSize int

	// IndexPath is where Save writes the index.
	IndexPath string
}

// IngestService extracts, chunks and embeds corpus files into a vector index.
// Extraction runs on a bounded worker pool; every Insert happens on a single
// goroutine in file discovery order.
type IngestService struct {
	corpus   driven.Corpus
	registry driven.NormaliserRegistry
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	store    driven.IndexStore
	opts     IngestOptions

	// mu serialises writers to the index.
	mu sync.Mutex
}

// NewIngestService creates an ingest service.
func NewIngestService(
	corpus driven.Corpus,
	registry driven.NormaliserRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	store driven.IndexStore,
	opts IngestOptions,
) *IngestService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	return &IngestService{
		corpus:   corpus,
		registry: registry,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		store:    store,
		opts:     opts,
	}
}

// fileResult is the outcome of processing one file.
type fileResult struct {
	seq      int
	uri      string
	chunks   []domain.Chunk
	vectors  [][]float32
	warnings []string
	err      error
}

// Build walks the corpus and inserts every extracted chunk. When the index
// already holds documents, Build brings it in line with the corpus: files
// that are gone lose their chunks, and re-ingested files lose the chunks
// their new version no longer has. Files that fail keep their old chunks.
func (s *IngestService) Build(ctx context.Context) (*driving.IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Section("Index Build")
	logger.Info("ingesting %s with %d workers", s.corpus.Root(), s.opts.Workers)

	previous := s.chunksByDocument()
	seen := make(map[string]bool)

	report := &driving.IngestReport{Failed: make(map[string]error)}
	results := make(chan fileResult)
	inserted := make(chan struct{})
	go func() {
		defer close(inserted)
		s.insertInOrder(ctx, results, previous, report)
	}()

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	raws, walkErrs := s.corpus.Walk(ctx)
	var walkFailures []error
	seq := 0
	for raws != nil || walkErrs != nil {
		select {
		case raw, ok := <-raws:
			if !ok {
				raws = nil
				continue
			}
			seen[domain.DocumentID(raw.URI)] = true
			n := seq
			seq++
			g.Go(func() error {
				results <- s.processFile(ctx, n, raw)
				return nil
			})
		case err, ok := <-walkErrs:
			if !ok {
				walkErrs = nil
				continue
			}
			walkFailures = append(walkFailures, err)
		}
	}

	_ = g.Wait()
	close(results)
	<-inserted

	report.Files = seq + len(walkFailures)
	for _, err := range walkFailures {
		logger.Warn("skipping unreadable file: %v", err)
		path := failurePath(err)
		report.Failed[path] = err
		seen[domain.DocumentID(path)] = true
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	if seq == 0 && len(walkFailures) > 0 && len(previous) > 0 {
		logger.Warn("corpus could not be read; keeping %d indexed documents", len(previous))
	} else {
		removed, err := s.removeUnseen(ctx, previous, seen)
		if err != nil {
			return report, err
		}
		report.Removed = removed
	}

	logger.Info("indexed %d chunks from %d documents (%d skipped, %d failed, %d removed)",
		report.Chunks, report.Documents, report.Skipped, len(report.Failed), report.Removed)

	return report, nil
}

// removeUnseen deletes the chunks of documents the walk no longer found.
func (s *IngestService) removeUnseen(ctx context.Context, previous map[string][]string, seen map[string]bool) (int, error) {
	removed := 0
	for docID, ids := range previous {
		if seen[docID] {
			continue
		}
		if err := s.index.Delete(ctx, ids...); err != nil {
			return removed, fmt.Errorf("remove deleted document: %w", err)
		}
		removed++
	}
	if removed > 0 {
		logger.Info("removed %d documents no longer in the corpus", removed)
	}
	return removed, nil
}

// insertInOrder receives file results and inserts them in sequence order.
func (s *IngestService) insertInOrder(
	ctx context.Context, results <-chan fileResult, previous map[string][]string, report *driving.IngestReport,
) {
	pending := make(map[int]fileResult)
	next := 0
	for r := range results {
		pending[r.seq] = r
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			s.record(ctx, ready, previous[domain.DocumentID(ready.uri)], report)
		}
	}
}

func (s *IngestService) record(ctx context.Context, r fileResult, stale []string, report *driving.IngestReport) {
	for _, w := range r.warnings {
		logger.Warn("%s", w)
	}

	switch {
	case r.err != nil:
		logger.Warn("failed %s: %v", r.uri, r.err)
		report.Failed[r.uri] = r.err
	case len(r.chunks) == 0:
		if err := s.index.Delete(ctx, stale...); err != nil {
			report.Failed[r.uri] = err
			return
		}
		report.Skipped++
	default:
		if err := s.replaceDocument(ctx, stale, r.chunks, r.vectors); err != nil {
			logger.Warn("failed to index %s: %v", r.uri, err)
			report.Failed[r.uri] = err
			return
		}
		report.Documents++
		report.Chunks += len(r.chunks)
		logger.Debug("indexed %s: %d chunks", r.uri, len(r.chunks))
	}
}

// replaceDocument inserts a document's new chunks, then deletes the stale
// chunk IDs the new version does not reuse. A failed insert leaves the
// stale chunks in place.
func (s *IngestService) replaceDocument(ctx context.Context, stale []string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := s.index.Insert(ctx, chunks, vectors); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	keep := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		keep[c.ID] = true
	}
	var drop []string
	for _, id := range stale {
		if !keep[id] {
			drop = append(drop, id)
		}
	}
	return s.index.Delete(ctx, drop...)
}

// processFile extracts, chunks and embeds one file. It never touches the index.
func (s *IngestService) processFile(ctx context.Context, seq int, raw domain.RawDocument) fileResult {
	r := fileResult{seq: seq, uri: raw.URI}

	if err := ctx.Err(); err != nil {
		r.err = err
		return r
	}

	res, err := s.registry.Normalise(ctx, &raw)
	if err != nil {
		r.err = err
		return r
	}
	r.warnings = res.Warnings
	if !res.HasText() {
		return r
	}

	chunks, err := s.chunker.Process(ctx, &res.Document)
	if err != nil {
		r.err = fmt.Errorf("chunk: %w", err)
		return r
	}
	if len(chunks) == 0 {
		return r
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedBatches(ctx, texts)
	if err != nil {
		r.err = err
		return r
	}

	r.chunks = chunks
	r.vectors = vectors
	return r
}

// embedBatches embeds texts in groups of BatchSize, preserving order.
func (s *IngestService) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(texts))
		batch, err := s.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
				domain.ErrEmbeddingUnavailable, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Apply re-ingests a single changed file, replacing its previous chunks.
// The old chunks are kept when the new version cannot be processed.
func (s *IngestService) Apply(ctx context.Context, change domain.RawDocumentChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uri := change.Document.URI
	stale := s.documentChunkIDs(domain.DocumentID(uri))

	if change.Type == domain.ChangeDeleted {
		logger.Info("removing %s (%d chunks)", uri, len(stale))
		return s.index.Delete(ctx, stale...)
	}

	r := s.processFile(ctx, 0, change.Document)
	for _, w := range r.warnings {
		logger.Warn("%s", w)
	}
	if r.err != nil {
		return fmt.Errorf("re-ingest %s: %w", uri, r.err)
	}

	if len(r.chunks) == 0 {
		if err := s.index.Delete(ctx, stale...); err != nil {
			return err
		}
		logger.Info("%s %s: no text, %d chunks removed", change.Type, uri, len(stale))
		return nil
	}
	if err := s.replaceDocument(ctx, stale, r.chunks, r.vectors); err != nil {
		return fmt.Errorf("re-ingest %s: %w", uri, err)
	}

	logger.Info("%s %s: %d chunks", change.Type, uri, len(r.chunks))
	return nil
}

// Save persists the index to the configured directory.
func (s *IngestService) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(ctx, s.opts.IndexPath, s.index, s.embedder.ModelName())
}

func (s *IngestService) documentChunkIDs(docID string) []string {
	var ids []string
	for _, e := range s.index.Entries() {
		if e.Chunk.DocumentID == docID {
			ids = append(ids, e.Chunk.ID)
		}
	}
	return ids
}

// chunksByDocument groups the chunk IDs already in the index by document.
func (s *IngestService) chunksByDocument() map[string][]string {
	byDoc := make(map[string][]string)
	for _, e := range s.index.Entries() {
		byDoc[e.Chunk.DocumentID] = append(byDoc[e.Chunk.DocumentID], e.Chunk.ID)
	}
	return byDoc
}

// failurePath extracts the file path from a walk error.
func failurePath(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return strings.TrimSpace(err.Error())
}
