package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

const fakeDims = 32

// fakeEmbedder hashes words into a bag-of-words vector.
type fakeEmbedder struct {
	calls      atomic.Int64
	batchCalls atomic.Int64
	failOn     string
	err        error

	// dims truncates vectors when set.
	dims int
}

func embedWords(text string) []float32 {
	v := make([]float32, fakeDims)
	for w := range strings.FieldsSeq(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:?!\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%fakeDims]++
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return embedWords(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, domain.ErrEmbeddingUnavailable
		}
		out[i] = embedWords(t)
		if f.dims > 0 {
			out[i] = out[i][:f.dims]
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return fakeDims }
func (f *fakeEmbedder) ModelName() string            { return "fake-embed" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

// fakeLLM records prompts and returns a canned reply.
type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	prompts  []string
	messages [][]driven.ChatMessage
	genOpts  []driven.GenerationOptions
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, opts driven.GenerationOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.genOpts = append(f.genOpts, opts)
	return f.reply, f.err
}

func (f *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.GenerationOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages)
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string            { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

// fakePrompts serves a fixed template.
type fakePrompts struct {
	template string
	err      error
}

func (f *fakePrompts) Load(_ string) (string, error) { return f.template, f.err }

const testTemplate = "Context:\n{{context}}\n\nQuestion:\n{{question}}\n\nAnswer:"

// fakeRetriever returns canned chunks.
type fakeRetriever struct {
	chunks []domain.RetrievedChunk
	err    error
	gotK   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int) ([]domain.RetrievedChunk, error) {
	f.gotK = k
	return f.chunks, f.err
}

// fakeCorpus emits fixed documents and errors.
type fakeCorpus struct {
	docs []domain.RawDocument
	errs []error
}

func (f *fakeCorpus) Walk(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	go func() {
		defer close(docs)
		defer close(errs)
		for _, err := range f.errs {
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
		for _, d := range f.docs {
			select {
			case docs <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docs, errs
}

func (f *fakeCorpus) Watch(_ context.Context) (<-chan domain.RawDocumentChange, error) {
	return nil, errors.New("not supported")
}

func (f *fakeCorpus) Root() string { return "/corpus" }
func (f *fakeCorpus) Close() error { return nil }

// fakeIndexStore records saves.
type fakeIndexStore struct {
	saved []string
	model string
	count int
}

func (f *fakeIndexStore) Save(_ context.Context, dir string, index driven.VectorIndex, model string) error {
	f.saved = append(f.saved, dir)
	f.model = model
	f.count = index.Len()
	return nil
}

func (f *fakeIndexStore) Load(_ context.Context, _ string) (driven.VectorIndex, *domain.IndexInfo, error) {
	return nil, nil, domain.ErrCorruptOrMissingIndex
}

func (f *fakeIndexStore) Info(_ context.Context, _ string) (*domain.IndexInfo, error) {
	return nil, domain.ErrCorruptOrMissingIndex
}

// memorySink collects evaluation records.
type memorySink struct {
	records []domain.EvalRecord
	err     error
}

func (m *memorySink) Write(r domain.EvalRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memorySink) Close() error { return nil }

// fakeAnswers answers from a map of question to reply.
type fakeAnswers struct {
	replies map[string]string
	fail    map[string]bool
}

func (f *fakeAnswers) Answer(_ context.Context, _ driving.AnswerRequest) domain.Answer {
	return domain.Answer{}
}

func (f *fakeAnswers) Ask(
	_ context.Context, question string, _ *domain.Attachment, _ domain.Conversation,
) domain.Answer {
	if f.fail[question] {
		err := domain.ErrGenerationUnavailable
		return domain.Answer{Text: ErrorText(err), Err: err}
	}
	return domain.Answer{Text: f.replies[question]}
}
