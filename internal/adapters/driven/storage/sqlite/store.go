package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// FileName is the database file name inside an index directory.
const FileName = "chunks.db"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store holds the chunk payload of one index directory.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the chunk database in dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty store directory", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return open(filepath.Join(dir, FileName), true)
}

// OpenExisting opens the chunk database in dir without creating it.
// A missing file is domain.ErrCorruptOrMissingIndex.
func OpenExisting(dir string) (*Store, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptOrMissingIndex, err)
	}
	return open(path, false)
}

func open(path string, create bool) (*Store, error) {
	mode := "rw"
	if create {
		mode = "rwc"
	}

	// The index directory is renamed into place after writing, so no
	// journal may outlive Close.
	db, err := sql.Open("sqlite", "file:"+path+"?mode="+mode+
		"&_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}

	return nil
}

// apply runs one migration and records it in a single transaction.
func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceChunks replaces the stored payload with chunks in the given order.
// The slice position becomes each chunk's ordinal. Parent documents are
// derived from the chunks' document IDs and source metadata.
func (s *Store) ReplaceChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, uri, title) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing document statement: %w", err)
	}
	defer docStmt.Close()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, ordinal, sequence_index, content, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	for ordinal, chunk := range chunks {
		source := chunk.Source()
		if _, err := docStmt.ExecContext(ctx, chunk.DocumentID, source, titleOf(source)); err != nil {
			return fmt.Errorf("saving document %s: %w", chunk.DocumentID, err)
		}

		metadataJSON, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := chunkStmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, ordinal,
			chunk.SequenceIndex, chunk.Content, string(metadataJSON)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Chunks returns every chunk ordered by ordinal.
func (s *Store) Chunks(ctx context.Context) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, document_id, sequence_index, content, metadata
		FROM chunks ORDER BY ordinal
	`)
}

// DocumentChunks returns a document's chunks in sequence order.
func (s *Store) DocumentChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, document_id, sequence_index, content, metadata
		FROM chunks WHERE document_id = ?
		ORDER BY sequence_index
	`, documentID)
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, sequence_index, content, metadata
		FROM chunks WHERE id = ?
	`, id)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// ListDocuments returns the indexed documents ordered by URI.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.uri, d.title, COUNT(c.id)
		FROM documents d LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id ORDER BY d.uri
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		var chunks int
		if err := rows.Scan(&doc.ID, &doc.URI, &doc.Title, &chunks); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Metadata = map[string]any{"chunks": chunks}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Counts returns the number of stored documents and chunks.
func (s *Store) Counts(ctx context.Context) (documents, chunks int, err error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM chunks)")
	if err := row.Scan(&documents, &chunks); err != nil {
		return 0, 0, fmt.Errorf("counting rows: %w", err)
	}
	return documents, chunks, nil
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanChunk scans one chunk row from *sql.Row or *sql.Rows.
func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var metadataJSON string

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.SequenceIndex,
		&chunk.Content, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	if metadataJSON != "" && metadataJSON != "null" {
		metadata, err := decodeMetadata(metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}
		chunk.Metadata = metadata
	}

	return &chunk, nil
}

// encodeMetadata writes float values with a fraction or exponent, so that
// decodeMetadata can tell 2.0 from 2. Floats come back as float64 and
// integers as int.
func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return json.Marshal(m)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch f := v.(type) {
		case float64:
			out[k] = floatNumber(f)
		case float32:
			out[k] = floatNumber(float64(f))
		default:
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func floatNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	text := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return json.Number(text)
}

// decodeMetadata reads metadata written by encodeMetadata. Top-level numbers
// without a fraction or exponent become int.
func decodeMetadata(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = int(i)
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		m[k] = f
	}
	return m, nil
}

func titleOf(uri string) string {
	if uri == "" {
		return ""
	}
	return filepath.Base(uri)
}
