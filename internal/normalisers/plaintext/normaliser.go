// Package plaintext extracts text from plain text files.
package plaintext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	errInvalidUTF8 = errors.New("invalid UTF-8")
	errBinary      = errors.New("binary content")
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Kind returns the file kind this normaliser extracts.
func (n *Normaliser) Kind() domain.FileKind {
	return domain.KindPlainText
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"text/csv",
	}
}

// Normalise decodes the content as UTF-8, falling back to Latin-1.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text, encoding, err := decode(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailure, raw.URI, err)
	}
	content := strings.TrimSpace(text)

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta[domain.MetaSource] = filepath.Base(raw.URI)
	meta[domain.MetaMIMEType] = "text/plain"
	meta[domain.MetaFileKind] = domain.KindPlainText.String()
	meta["encoding"] = encoding

	result := &driven.NormaliseResult{
		Document: domain.Document{
			ID:        normalisers.DocumentID(raw.URI),
			URI:       raw.URI,
			Title:     titleFromMetadataOrURI(raw),
			Content:   content,
			Metadata:  meta,
			CreatedAt: time.Now(),
		},
	}
	if content == "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", raw.URI, domain.ErrNoTextFound))
	}
	return result, nil
}

// decode tries UTF-8 then Latin-1 and returns the text with the encoding used.
func decode(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var errs []error
	for _, d := range []struct {
		name string
		fn   func([]byte) (string, error)
	}{
		{"utf-8", decodeUTF8},
		{"latin-1", decodeLatin1},
	} {
		text, err := d.fn(data)
		if err == nil {
			return text, d.name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
	}
	return "", "", errors.Join(errs...)
}

func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return checkText(string(data))
}

func decodeLatin1(data []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return checkText(string(out))
}

// checkText rejects decoded output that is clearly not text.
func checkText(s string) (string, error) {
	if strings.ContainsRune(s, 0) {
		return "", errBinary
	}
	return s, nil
}

// titleFromMetadataOrURI checks metadata for title first, then falls back to URI.
func titleFromMetadataOrURI(raw *domain.RawDocument) string {
	if title, ok := raw.Metadata["title"].(string); ok && title != "" {
		return title
	}
	return normalisers.TitleFromURI(raw.URI)
}
