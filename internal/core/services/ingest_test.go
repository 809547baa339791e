package services

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/normalisers"
	"github.com/custodia-labs/lexis/internal/normalisers/plaintext"
	"github.com/custodia-labs/lexis/internal/postprocessors/chunker"
)

func textDoc(uri, content string) domain.RawDocument {
	return domain.RawDocument{URI: uri, MIMEType: "text/plain", Content: []byte(content)}
}

func newTestIngest(t *testing.T, corpus *fakeCorpus, embedder *fakeEmbedder, workers int) (*IngestService, *flat.Index, *fakeIndexStore) {
	t.Helper()
	chunks, err := chunker.New(chunker.WithMaxWords(5))
	require.NoError(t, err)

	idx := flat.New()
	store := &fakeIndexStore{}
	svc := NewIngestService(corpus, normalisers.NewRegistry(plaintext.New()), chunks, embedder, idx, store,
		IngestOptions{Workers: workers, BatchSize: 2, IndexPath: "/tmp/lexis-index"})
	return svc, idx, store
}

func TestIngestService_Build(t *testing.T) {
	corpus := &fakeCorpus{
		docs: []domain.RawDocument{
			textDoc("/corpus/a.txt", "The contract is void if signed under duress."),
			textDoc("/corpus/b.txt", strings.Repeat("word ", 12)),
			{URI: "/corpus/c.bin", Content: []byte{1, 2, 3}},
			textDoc("/corpus/d.txt", "   \n"),
			textDoc("/corpus/e.txt", "this one will FAIL to embed"),
			textDoc("/corpus/f.txt", "nul\x00byte"),
		},
		errs: []error{&fs.PathError{Op: "open", Path: "/corpus/locked.pdf", Err: fs.ErrPermission}},
	}
	embedder := &fakeEmbedder{failOn: "FAIL"}
	svc, idx, _ := newTestIngest(t, corpus, embedder, 3)

	report, err := svc.Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, report.Files)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 5, report.Chunks, "a.txt gives 2 chunks, b.txt gives 3")
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Failed, 3)
	assert.ErrorIs(t, report.Failed["/corpus/e.txt"], domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, report.Failed["/corpus/f.txt"], domain.ErrExtractionFailure)
	assert.ErrorIs(t, report.Failed["/corpus/locked.pdf"], fs.ErrPermission)
	assert.Equal(t, 5, idx.Len())
	assert.Greater(t, embedder.batchCalls.Load(), int64(2))
}

func TestIngestService_Build_InsertsInDiscoveryOrder(t *testing.T) {
	var docs []domain.RawDocument
	for i := range 20 {
		docs = append(docs, textDoc(fmt.Sprintf("/corpus/%02d.txt", i), "identical text body"))
	}
	svc, idx, _ := newTestIngest(t, &fakeCorpus{docs: docs}, &fakeEmbedder{}, 8)

	_, err := svc.Build(context.Background())
	require.NoError(t, err)

	entries := idx.Entries()
	require.Len(t, entries, 20)
	for i, e := range entries {
		assert.Equal(t, domain.DocumentID(fmt.Sprintf("/corpus/%02d.txt", i)), e.Chunk.DocumentID)
	}

	results, err := idx.Query(context.Background(), embedWords("identical text body"), 3)
	require.NoError(t, err)
	assert.Equal(t, entries[0].Chunk.ID, results[0].Chunk.ID, "ties keep insertion order")
}

func TestIngestService_Build_Cancelled(t *testing.T) {
	docs := []domain.RawDocument{textDoc("/corpus/a.txt", "text")}
	svc, _, _ := newTestIngest(t, &fakeCorpus{docs: docs}, &fakeEmbedder{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestService_Apply(t *testing.T) {
	corpus := &fakeCorpus{docs: []domain.RawDocument{
		textDoc("/corpus/a.txt", "one two three four five six"),
		textDoc("/corpus/b.txt", "keep this document"),
	}}
	svc, idx, _ := newTestIngest(t, corpus, &fakeEmbedder{}, 2)
	_, err := svc.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	err = svc.Apply(context.Background(), domain.RawDocumentChange{
		Type:     domain.ChangeUpdated,
		Document: textDoc("/corpus/a.txt", "rewritten"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	err = svc.Apply(context.Background(), domain.RawDocumentChange{
		Type:     domain.ChangeUpdated,
		Document: textDoc("/corpus/a.txt", "bad\x00bytes"),
	})
	assert.ErrorIs(t, err, domain.ErrExtractionFailure)
	assert.Equal(t, 2, idx.Len(), "failed update keeps previous chunks")

	err = svc.Apply(context.Background(), domain.RawDocumentChange{
		Type:     domain.ChangeDeleted,
		Document: domain.RawDocument{URI: "/corpus/a.txt"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
	assert.Equal(t, "keep this document", idx.Entries()[0].Chunk.Content)

	err = svc.Apply(context.Background(), domain.RawDocumentChange{
		Type:     domain.ChangeCreated,
		Document: textDoc("/corpus/c.txt", "brand new"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
}

func chunkContents(idx *flat.Index) []string {
	var out []string
	for _, e := range idx.Entries() {
		out = append(out, e.Chunk.Content)
	}
	return out
}

func TestIngestService_Build_DropsStaleChunks(t *testing.T) {
	ctx := context.Background()
	corpus := &fakeCorpus{docs: []domain.RawDocument{
		textDoc("/corpus/a.txt", "one two three four five six seven eight nine ten eleven"),
		textDoc("/corpus/gone.txt", "repealed statute text"),
		textDoc("/corpus/blank.txt", "soon to be empty"),
		textDoc("/corpus/locked.txt", "still readable for now"),
	}}
	svc, idx, _ := newTestIngest(t, corpus, &fakeEmbedder{}, 2)
	_, err := svc.Build(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, idx.Len())

	corpus.docs = []domain.RawDocument{
		textDoc("/corpus/a.txt", "short"),
		textDoc("/corpus/blank.txt", "   "),
	}
	corpus.errs = []error{&fs.PathError{Op: "open", Path: "/corpus/locked.txt", Err: fs.ErrPermission}}

	report, err := svc.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"short", "still readable for now"}, chunkContents(idx),
		"shrunk file keeps one chunk, unreadable file keeps its chunks")

	results, err := idx.Query(ctx, embedWords("repealed statute text"), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, "repealed statute text", results[0].Chunk.Content)
}

func TestIngestService_Build_UnreadableCorpusKeepsIndex(t *testing.T) {
	ctx := context.Background()
	corpus := &fakeCorpus{docs: []domain.RawDocument{textDoc("/corpus/a.txt", "kept text")}}
	svc, idx, _ := newTestIngest(t, corpus, &fakeEmbedder{}, 1)
	_, err := svc.Build(ctx)
	require.NoError(t, err)

	corpus.docs = nil
	corpus.errs = []error{&fs.PathError{Op: "lstat", Path: "/corpus", Err: fs.ErrNotExist}}

	report, err := svc.Build(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Removed)
	assert.Equal(t, []string{"kept text"}, chunkContents(idx))
}

func TestIngestService_Apply_FailedInsertKeepsChunks(t *testing.T) {
	ctx := context.Background()
	corpus := &fakeCorpus{docs: []domain.RawDocument{
		textDoc("/corpus/a.txt", "one two three four five six"),
	}}
	embedder := &fakeEmbedder{}
	svc, idx, _ := newTestIngest(t, corpus, embedder, 1)
	_, err := svc.Build(ctx)
	require.NoError(t, err)
	before := chunkContents(idx)

	embedder.dims = 8
	err = svc.Apply(ctx, domain.RawDocumentChange{
		Type:     domain.ChangeUpdated,
		Document: textDoc("/corpus/a.txt", "rewritten text"),
	})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, before, chunkContents(idx))
}

func TestIngestService_Save(t *testing.T) {
	corpus := &fakeCorpus{docs: []domain.RawDocument{textDoc("/corpus/a.txt", "some text")}}
	svc, _, store := newTestIngest(t, corpus, &fakeEmbedder{}, 1)
	_, err := svc.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Save(context.Background()))

	assert.Equal(t, []string{"/tmp/lexis-index"}, store.saved)
	assert.Equal(t, "fake-embed", store.model)
	assert.Equal(t, 1, store.count)
}
