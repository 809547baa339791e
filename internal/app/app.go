// Package app wires adapters and services from resolved settings.
// Services are built on first use, so commands that never touch the
// index or the AI providers never load or contact them.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/lexis/internal/adapters/driven/ai"
	"github.com/custodia-labs/lexis/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexis/internal/adapters/driven/storage/indexdir"
	"github.com/custodia-labs/lexis/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/lexis/internal/connectors/filesystem"
	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/core/services"
	"github.com/custodia-labs/lexis/internal/logger"
	"github.com/custodia-labs/lexis/internal/normalisers"
	"github.com/custodia-labs/lexis/internal/normalisers/ocr"
	"github.com/custodia-labs/lexis/internal/normalisers/pdf"
	"github.com/custodia-labs/lexis/internal/normalisers/plaintext"
	"github.com/custodia-labs/lexis/internal/normalisers/raster"
	"github.com/custodia-labs/lexis/internal/postprocessors/chunker"
)

// App holds the lazily built runtime.
type App struct {
	settings driving.SettingsService

	mu       sync.Mutex
	resolved *domain.AppSettings
	ai       *ai.Services
	prompts  *file.PromptStore
	registry *normalisers.Registry
	store    *indexdir.Store
	index    driven.VectorIndex
	info     *domain.IndexInfo
}

// New creates the runtime. An empty configPath uses ~/.lexis/config.toml.
func New(configPath string) (*App, error) {
	var (
		store *file.ConfigStore
		err   error
	)
	if configPath != "" {
		store, err = file.NewConfigStoreAt(configPath)
	} else {
		store, err = file.NewConfigStore("")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	return NewWithSettings(services.NewSettingsService(store, ai.NewProber(ai.DefaultProbeTimeout))), nil
}

// NewWithSettings creates the runtime on an existing settings service.
func NewWithSettings(settings driving.SettingsService) *App {
	return &App{
		settings: settings,
		store:    indexdir.New(),
	}
}

// Settings returns the settings service.
func (a *App) Settings() driving.SettingsService {
	return a.settings
}

// Resolved returns the resolved settings. The first successful resolution
// is reused for the lifetime of the process.
func (a *App) Resolved() (*domain.AppSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolvedLocked()
}

func (a *App) resolvedLocked() (*domain.AppSettings, error) {
	if a.resolved != nil {
		return a.resolved, nil
	}
	s, err := a.settings.Get()
	if err != nil {
		return nil, err
	}
	a.resolved = s
	return s, nil
}

func (a *App) aiLocked() (*ai.Services, error) {
	if a.ai != nil {
		return a.ai, nil
	}
	s, err := a.resolvedLocked()
	if err != nil {
		return nil, err
	}
	svc, err := ai.NewServices(*s)
	if err != nil {
		return nil, err
	}
	a.ai = svc
	return svc, nil
}

func (a *App) promptsLocked() (*file.PromptStore, error) {
	if a.prompts != nil {
		return a.prompts, nil
	}
	p, err := file.NewPromptStore("")
	if err != nil {
		return nil, err
	}
	a.prompts = p
	return p, nil
}

func (a *App) registryLocked() (*normalisers.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	s, err := a.resolvedLocked()
	if err != nil {
		return nil, err
	}

	engine := ocr.New(ocr.Config{
		TesseractPath: s.OCR.TesseractPath,
		PopplerPath:   s.OCR.PopplerPath,
		Language:      s.OCR.Language,
		Timeout:       s.Calls.Timeout,
	})
	if err := ocr.CheckAvailable(ocr.Config{
		TesseractPath: s.OCR.TesseractPath,
		PopplerPath:   s.OCR.PopplerPath,
	}); err != nil {
		logger.Warn("%v; PDF and image extraction will fail.\n%s", err, ocr.InstallInstructions())
	}

	a.registry = normalisers.NewRegistry(
		plaintext.New(),
		pdf.New(engine),
		raster.New(engine),
	)
	return a.registry, nil
}

// loadIndexLocked loads the saved index once and checks it was built with
// the configured embedding model.
func (a *App) loadIndexLocked(ctx context.Context) (driven.VectorIndex, *domain.IndexInfo, error) {
	if a.index != nil {
		return a.index, a.info, nil
	}
	s, err := a.resolvedLocked()
	if err != nil {
		return nil, nil, err
	}
	index, info, err := a.store.Load(ctx, s.Index.Path)
	if err != nil {
		return nil, nil, err
	}
	if info.EmbeddingModel != "" && info.EmbeddingModel != s.Embedding.Model {
		logger.Warn("index was built with %q but %q is configured; results will be poor or fail",
			info.EmbeddingModel, s.Embedding.Model)
	}
	logger.Debug("loaded index %s: %d chunks, %d dimensions", info.Path, info.Chunks, info.Dimensions)
	a.index, a.info = index, info
	return index, info, nil
}

// IndexInfo reads the manifest of the configured index without loading it.
func (a *App) IndexInfo(ctx context.Context) (*domain.IndexInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.resolvedLocked()
	if err != nil {
		return nil, err
	}
	return a.store.Info(ctx, s.Index.Path)
}

// Documents lists the documents of the configured index.
func (a *App) Documents(ctx context.Context) ([]domain.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.resolvedLocked()
	if err != nil {
		return nil, err
	}
	return a.store.Documents(ctx, s.Index.Path)
}

// Retrieval returns a retriever over the saved index.
func (a *App) Retrieval(ctx context.Context) (driving.RetrievalService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retrievalLocked(ctx)
}

func (a *App) retrievalLocked(ctx context.Context) (*services.RetrievalService, error) {
	s, err := a.resolvedLocked()
	if err != nil {
		return nil, err
	}
	index, _, err := a.loadIndexLocked(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := a.aiLocked()
	if err != nil {
		return nil, err
	}
	return services.NewRetrievalService(svc.Embedding, index, s.Retrieval.TopK), nil
}

// Answers returns an answer service over the saved index.
func (a *App) Answers(ctx context.Context) (driving.AnswerService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answersLocked(ctx)
}

func (a *App) answersLocked(ctx context.Context) (*services.AnswerService, error) {
	retriever, err := a.retrievalLocked(ctx)
	if err != nil {
		return nil, err
	}
	prompts, err := a.promptsLocked()
	if err != nil {
		return nil, err
	}
	s, _ := a.resolvedLocked()
	return services.NewAnswerService(a.ai.LLM, retriever, prompts, services.AnswerOptionsFromSettings(s)), nil
}

// Evaluation returns an evaluation service writing records to sink.
// A nil sink discards records.
func (a *App) Evaluation(ctx context.Context, sink driven.EvaluationSink) (driving.EvaluationService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	answers, err := a.answersLocked(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewEvaluationService(answers, nil, sink), nil
}

// Ingest returns an ingest service for the corpus at root. With resume set
// the saved index is loaded and updated; otherwise a fresh index is built.
// The caller closes the returned corpus.
func (a *App) Ingest(ctx context.Context, root string, resume bool) (driving.IngestService, driven.Corpus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corpus %s: %w", domain.ErrInvalidInput, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corpus %s: %w", domain.ErrInvalidInput, root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: corpus %s is not a directory", domain.ErrInvalidInput, root)
	}

	s, err := a.resolvedLocked()
	if err != nil {
		return nil, nil, err
	}
	svc, err := a.aiLocked()
	if err != nil {
		return nil, nil, err
	}
	registry, err := a.registryLocked()
	if err != nil {
		return nil, nil, err
	}
	chunks, err := chunker.New(chunker.WithMaxWords(s.Chunk.MaxWords))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	var index driven.VectorIndex = flat.New()
	if resume {
		loaded, _, err := a.loadIndexLocked(ctx)
		switch {
		case err == nil:
			index = loaded
		case errors.Is(err, domain.ErrCorruptOrMissingIndex):
			logger.Warn("no usable index at %s, starting empty: %v", s.Index.Path, err)
		default:
			return nil, nil, err
		}
	}

	corpus := filesystem.New(abs)
	ingest := services.NewIngestService(corpus, registry, chunks, svc.Embedding, index, a.store, services.IngestOptions{
		Workers:   s.Ingest.Workers,
		BatchSize: s.Embedding.BatchSize,
		IndexPath: s.Index.Path,
	})
	return ingest, corpus, nil
}

// Attachment extracts the text of a local file for use as an uploaded
// attachment.
func (a *App) Attachment(ctx context.Context, path string) (*domain.Attachment, error) {
	a.mu.Lock()
	registry, err := a.registryLocked()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	raw := &domain.RawDocument{URI: path, Content: content}
	result, err := registry.Normalise(ctx, raw)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		logger.Warn("%s: %s", filepath.Base(path), w)
	}
	if !result.HasText() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoTextFound, filepath.Base(path))
	}
	return &domain.Attachment{Name: filepath.Base(path), Text: result.Document.Content}, nil
}

// Close releases the AI clients and the loaded index.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.ai != nil {
		a.ai.Close()
		a.ai = nil
	}
	if a.index != nil {
		err = a.index.Close()
		a.index = nil
	}
	return err
}
