// Package indexdir persists a vector index as a directory of three files:
// the vector payload, the SQLite chunk payload, and a TOML manifest.
// The files are only valid together; Save replaces all of them at once.
package indexdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/lexis/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lexis/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.IndexStore = (*Store)(nil)

// File names inside an index directory.
const (
	VectorsFile  = "vectors.bin"
	ManifestFile = "manifest.toml"

	manifestVersion = 1
)

// manifest describes a saved index.
type manifest struct {
	Version        int       `toml:"version"`
	EmbeddingModel string    `toml:"embedding_model"`
	Dimensions     int       `toml:"dimensions"`
	Chunks         int       `toml:"chunks"`
	Documents      int       `toml:"documents"`
	BuiltAt        time.Time `toml:"built_at"`
}

// Store implements driven.IndexStore on the local filesystem.
type Store struct {
	now func() time.Time
}

// New creates an index directory store.
func New() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// Save writes the index into a temporary sibling of dir and renames it into
// place, so a reader never observes a half-written index. An empty index is
// saved with zero dimensions.
func (s *Store) Save(ctx context.Context, dir string, index driven.VectorIndex, model string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty index path", domain.ErrInvalidInput)
	}
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return fmt.Errorf("creating index parent: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp index dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(tmp)
		}
	}()

	entries := index.Entries()
	dim := 0
	if len(entries) > 0 {
		dim = index.Dimensions()
	}
	chunks := make([]domain.Chunk, len(entries))
	records := make([]flat.Record, len(entries))
	for i, e := range entries {
		chunks[i] = e.Chunk
		records[i] = flat.Record{ID: e.Chunk.ID, Vector: e.Vector}
	}

	if err := writeVectors(filepath.Join(tmp, VectorsFile), dim, records); err != nil {
		return err
	}

	docs, err := writeChunks(ctx, tmp, chunks)
	if err != nil {
		return err
	}

	m := manifest{
		Version:        manifestVersion,
		EmbeddingModel: model,
		Dimensions:     dim,
		Chunks:         len(entries),
		Documents:      docs,
		BuiltAt:        s.now(),
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, ManifestFile), data, 0600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := swap(tmp, dir); err != nil {
		return err
	}
	committed = true

	logger.Debug("saved index %s: %d chunks, %d documents, %d dimensions", dir, m.Chunks, m.Documents, m.Dimensions)
	return nil
}

// Load reads an index saved by Save and checks that both payloads agree
// with each other and with the manifest.
func (s *Store) Load(ctx context.Context, dir string) (driven.VectorIndex, *domain.IndexInfo, error) {
	info, err := s.Info(ctx, dir)
	if err != nil {
		return nil, nil, err
	}

	dim, records, err := readVectors(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, nil, err
	}

	store, err := sqlite.OpenExisting(dir)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	chunks, err := store.Chunks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrCorruptOrMissingIndex, err)
	}

	if err := check(info, dim, records, chunks); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", domain.ErrCorruptOrMissingIndex, dir, err)
	}

	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = r.Vector
	}

	index := flat.New()
	if err := index.Insert(ctx, chunks, vectors); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrCorruptOrMissingIndex, err)
	}

	return index, info, nil
}

// Info reads the manifest without loading vectors.
func (s *Store) Info(_ context.Context, dir string) (*domain.IndexInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptOrMissingIndex, err)
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", domain.ErrCorruptOrMissingIndex, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d", domain.ErrCorruptOrMissingIndex, m.Version)
	}

	return &domain.IndexInfo{
		Path:           dir,
		EmbeddingModel: m.EmbeddingModel,
		Dimensions:     m.Dimensions,
		Chunks:         m.Chunks,
		Documents:      m.Documents,
	}, nil
}

// Documents lists the documents of a saved index.
func (s *Store) Documents(ctx context.Context, dir string) ([]domain.Document, error) {
	store, err := sqlite.OpenExisting(dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListDocuments(ctx)
}

func check(info *domain.IndexInfo, dim int, records []flat.Record, chunks []domain.Chunk) error {
	if dim != info.Dimensions {
		return fmt.Errorf("payload has %d dimensions, manifest has %d", dim, info.Dimensions)
	}
	if len(records) != info.Chunks || len(chunks) != info.Chunks {
		return fmt.Errorf("manifest lists %d chunks, found %d vectors and %d chunk rows",
			info.Chunks, len(records), len(chunks))
	}
	for i, r := range records {
		if r.ID != chunks[i].ID {
			return fmt.Errorf("vector %d is %q but chunk %d is %q", i, r.ID, i, chunks[i].ID)
		}
	}
	return nil
}

func writeVectors(path string, dim int, records []flat.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating vector payload: %w", err)
	}
	if err := flat.EncodePayload(f, dim, records); err != nil {
		f.Close()
		return fmt.Errorf("writing vector payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing vector payload: %w", err)
	}
	return f.Close()
}

func readVectors(path string) (int, []flat.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", domain.ErrCorruptOrMissingIndex, err)
	}
	defer f.Close()
	return flat.DecodePayload(f)
}

func writeChunks(ctx context.Context, dir string, chunks []domain.Chunk) (int, error) {
	store, err := sqlite.NewStore(dir)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.ReplaceChunks(ctx, chunks); err != nil {
		return 0, err
	}
	docs, _, err := store.Counts(ctx)
	if err != nil {
		return 0, err
	}
	return docs, nil
}

// swap moves tmp to dir, keeping any previous index until the new one is in place.
func swap(tmp, dir string) error {
	var old string
	if _, err := os.Stat(dir); err == nil {
		old = dir + ".old-" + filepath.Base(tmp)
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("moving previous index aside: %w", err)
		}
	}

	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("installing index: %w", err)
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			logger.Warn("removing previous index %s: %v", old, err)
		}
	}
	return nil
}
