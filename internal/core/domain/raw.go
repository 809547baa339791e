package domain

import (
	"path/filepath"
	"strings"
)

// RawDocument represents opaque bytes read from the corpus.
// It is the walker's output before extraction.
type RawDocument struct {
	// URI is the original location (file path).
	URI string

	// MIMEType is the declared content type (e.g., "application/pdf").
	// It may be empty, in which case the extension decides.
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains walker-specific key-value pairs.
	Metadata map[string]any
}

// Kind resolves the file kind of the raw document.
func (r *RawDocument) Kind() FileKind {
	return ResolveFileKind(r.MIMEType, r.URI)
}

// ChangeType represents the type of corpus change.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns the string representation.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return unknownDescription
	}
}

// RawDocumentChange represents a change event from a corpus watcher.
type RawDocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document. Content is empty for deletions.
	Document RawDocument
}

// FileKind is the closed set of extraction strategies.
type FileKind int

const (
	// KindUnsupported marks input no extractor handles.
	KindUnsupported FileKind = iota

	// KindPDF is a PDF document.
	KindPDF

	// KindImage is a raster image that needs OCR.
	KindImage

	// KindPlainText is text in UTF-8 or Latin-1.
	KindPlainText
)

// String returns the string representation.
func (k FileKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	case KindPlainText:
		return "text"
	default:
		return "unsupported"
	}
}

var mimeKinds = map[string]FileKind{
	"application/pdf":   KindPDF,
	"application/x-pdf": KindPDF,
	"image/png":         KindImage,
	"image/jpeg":        KindImage,
	"image/gif":         KindImage,
	"image/bmp":         KindImage,
	"image/x-ms-bmp":    KindImage,
	"image/tiff":        KindImage,
	"image/webp":        KindImage,
	"text/plain":        KindPlainText,
	"text/markdown":     KindPlainText,
	"text/csv":          KindPlainText,
}

var extKinds = map[string]FileKind{
	".pdf":  KindPDF,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".webp": KindImage,
	".txt":  KindPlainText,
	".text": KindPlainText,
	".md":   KindPlainText,
	".csv":  KindPlainText,
	".log":  KindPlainText,
}

// ResolveFileKind maps a declared MIME type to a FileKind.
// MIME parameters are ignored. When the type is absent, generic,
// or not recognised, the file extension of path decides.
func ResolveFileKind(mimeType, path string) FileKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if kind, ok := mimeKinds[mt]; ok {
		return kind
	}
	if kind, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return KindUnsupported
}

// MIMETypeForKind returns the canonical MIME type for a file kind.
func MIMETypeForKind(k FileKind) string {
	switch k {
	case KindPDF:
		return "application/pdf"
	case KindImage:
		return "image/png"
	case KindPlainText:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
