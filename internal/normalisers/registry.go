package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw documents to the normaliser for their file kind.
// The kind is resolved once per document from the declared MIME type,
// with the file extension as fallback.
type Registry struct {
	mu     sync.RWMutex
	byKind map[domain.FileKind]driven.Normaliser
}

// NewRegistry creates a registry with the given normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	r := &Registry{byKind: make(map[domain.FileKind]driven.Normaliser)}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Register adds a normaliser, replacing any previous one for its kind.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[n.Kind()] = n
}

// SupportedMIMETypes returns all MIME types that can be extracted, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var types []string
	for _, n := range r.byKind {
		types = append(types, n.SupportedMIMETypes()...)
	}
	sort.Strings(types)
	return types
}

// Normalise extracts text using the normaliser for the resolved kind.
// Unsupported input yields an empty result with a warning.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	kind := raw.Kind()

	r.mu.RLock()
	n, ok := r.byKind[kind]
	r.mu.RUnlock()

	if !ok {
		return &driven.NormaliseResult{
			Document: domain.Document{
				ID:       DocumentID(raw.URI),
				URI:      raw.URI,
				Title:    TitleFromURI(raw.URI),
				Metadata: map[string]any{domain.MetaSource: filepath.Base(raw.URI)},
			},
			Warnings: []string{fmt.Sprintf("%s: %v (%s)", raw.URI, domain.ErrUnsupportedType, describeType(raw))},
		}, nil
	}

	return n.Normalise(ctx, raw)
}

func describeType(raw *domain.RawDocument) string {
	if raw.MIMEType != "" {
		return raw.MIMEType
	}
	if ext := filepath.Ext(raw.URI); ext != "" {
		return ext
	}
	return "unknown type"
}

// DocumentID returns the deterministic ID of the document at uri.
func DocumentID(uri string) string {
	return domain.DocumentID(uri)
}

// TitleFromURI derives a human-readable title from a file path.
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}

// CopyMetadata creates a shallow copy of metadata, never nil.
func CopyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+6)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
