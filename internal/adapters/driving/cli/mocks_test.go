package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

// mockRuntime implements Runtime for testing.
type mockRuntime struct {
	settings    *mockSettings
	resolved    *domain.AppSettings
	resolvedErr error

	info    *domain.IndexInfo
	infoErr error
	docs    []domain.Document

	retrieval driving.RetrievalService
	answers   driving.AnswerService
	eval      *mockEvaluation
	ingest    *mockIngest
	corpus    *mockCorpus

	attachments map[string]*domain.Attachment

	sink   driven.EvaluationSink
	resume bool
	closed bool
}

func newMockRuntime() *mockRuntime {
	settings := domain.DefaultAppSettings()
	settings.Index.Path = "/tmp/lexis-index"
	return &mockRuntime{
		settings:    &mockSettings{},
		resolved:    &settings,
		retrieval:   &mockRetrieval{},
		answers:     &mockAnswers{},
		eval:        &mockEvaluation{},
		ingest:      &mockIngest{},
		corpus:      &mockCorpus{root: "/corpus"},
		attachments: map[string]*domain.Attachment{},
	}
}

func (m *mockRuntime) Settings() driving.SettingsService { return m.settings }

func (m *mockRuntime) Resolved() (*domain.AppSettings, error) {
	return m.resolved, m.resolvedErr
}

func (m *mockRuntime) IndexInfo(_ context.Context) (*domain.IndexInfo, error) {
	return m.info, m.infoErr
}

func (m *mockRuntime) Documents(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.infoErr
}

func (m *mockRuntime) Retrieval(_ context.Context) (driving.RetrievalService, error) {
	return m.retrieval, nil
}

func (m *mockRuntime) Answers(_ context.Context) (driving.AnswerService, error) {
	return m.answers, nil
}

func (m *mockRuntime) Evaluation(_ context.Context, sink driven.EvaluationSink) (driving.EvaluationService, error) {
	m.sink = sink
	m.eval.sink = sink
	return m.eval, nil
}

func (m *mockRuntime) Ingest(_ context.Context, _ string, resume bool) (driving.IngestService, driven.Corpus, error) {
	m.resume = resume
	return m.ingest, m.corpus, nil
}

func (m *mockRuntime) Attachment(_ context.Context, path string) (*domain.Attachment, error) {
	att, ok := m.attachments[path]
	if !ok {
		return nil, domain.ErrNoTextFound
	}
	return att, nil
}

func (m *mockRuntime) Close() error {
	m.closed = true
	return nil
}

// mockSettings implements driving.SettingsService for testing.
type mockSettings struct {
	entries  []driving.Setting
	set      map[string]string
	setErr   error
	unset    []string
	embedErr error
	llmErr   error
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	return &s, nil
}

func (m *mockSettings) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.set == nil {
		m.set = map[string]string{}
	}
	m.set[key] = value
	return nil
}

func (m *mockSettings) Unset(key string) error {
	if m.setErr != nil {
		return m.setErr
	}
	delete(m.set, key)
	m.unset = append(m.unset, key)
	return nil
}

func (m *mockSettings) Entries() ([]driving.Setting, error) { return m.entries, nil }
func (m *mockSettings) GetDefaults() domain.AppSettings     { return domain.DefaultAppSettings() }

func (m *mockSettings) CheckProviders(_ context.Context) ([]driving.ProviderCheck, error) {
	return []driving.ProviderCheck{
		{Role: "embedding", Provider: domain.AIProviderOllama, Model: "all-minilm", Err: m.embedErr},
		{Role: "llm", Provider: domain.AIProviderOllama, Model: "llama3.2", Err: m.llmErr},
	}, nil
}

// mockRetrieval implements driving.RetrievalService for testing.
type mockRetrieval struct {
	chunks []domain.RetrievedChunk
	err    error
	lastK  int
}

func (m *mockRetrieval) Retrieve(_ context.Context, _ string, k int) ([]domain.RetrievedChunk, error) {
	m.lastK = k
	return m.chunks, m.err
}

// mockAnswers implements driving.AnswerService for testing.
type mockAnswers struct {
	answer    domain.Answer
	questions []string
	convs     []domain.Conversation
	atts      []*domain.Attachment
}

func (m *mockAnswers) Answer(_ context.Context, _ driving.AnswerRequest) domain.Answer {
	return m.answer
}

func (m *mockAnswers) Ask(_ context.Context, question string, att *domain.Attachment, conv domain.Conversation) domain.Answer {
	m.questions = append(m.questions, question)
	m.convs = append(m.convs, conv)
	m.atts = append(m.atts, att)
	return m.answer
}

// mockEvaluation implements driving.EvaluationService for testing.
type mockEvaluation struct {
	report *domain.EvalReport
	err    error
	cases  []domain.EvalCase
	sink   driven.EvaluationSink
}

func (m *mockEvaluation) Evaluate(_ context.Context, cases []domain.EvalCase) (*domain.EvalReport, error) {
	m.cases = cases
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.report.Records {
		if err := m.sink.Write(r); err != nil {
			return nil, err
		}
	}
	return m.report, nil
}

// mockIngest implements driving.IngestService for testing.
type mockIngest struct {
	report   *driving.IngestReport
	buildErr error
	applyErr error
	saveErr  error

	applied []domain.RawDocumentChange
	saves   int
}

func (m *mockIngest) Build(_ context.Context) (*driving.IngestReport, error) {
	if m.report == nil {
		return &driving.IngestReport{Failed: map[string]error{}}, m.buildErr
	}
	return m.report, m.buildErr
}

func (m *mockIngest) Apply(_ context.Context, change domain.RawDocumentChange) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, change)
	return nil
}

func (m *mockIngest) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.saves++
	return m.saveErr
}

// mockCorpus implements driven.Corpus for testing.
type mockCorpus struct {
	root    string
	changes chan domain.RawDocumentChange
	closed  bool
}

func (m *mockCorpus) Walk(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	close(docs)
	close(errs)
	return docs, errs
}

func (m *mockCorpus) Watch(_ context.Context) (<-chan domain.RawDocumentChange, error) {
	if m.changes == nil {
		return nil, errors.New("not watchable")
	}
	return m.changes, nil
}

func (m *mockCorpus) Root() string { return m.root }

func (m *mockCorpus) Close() error {
	m.closed = true
	return nil
}

// setupTestRuntime installs a mock runtime and resets command flags.
func setupTestRuntime(t *testing.T) *mockRuntime {
	t.Helper()

	m := newMockRuntime()
	original := rt
	rt = m

	retrieveK, retrieveJSON = 0, false
	askFile = ""
	evalOut, evalQuiet = "", false
	watchDebounce = 10 * time.Millisecond
	versionShort = false
	envFile = ""

	t.Cleanup(func() {
		rt = original
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})
	return m
}
