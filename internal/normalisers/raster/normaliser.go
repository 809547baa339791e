// Package raster extracts text from raster images with OCR.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/normalisers"
	"github.com/custodia-labs/lexis/internal/normalisers/ocr"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Recogniser runs OCR on an image file.
type Recogniser interface {
	Recognise(ctx context.Context, imagePath string) (string, error)
}

// Normaliser handles scanned pages and photos of documents.
type Normaliser struct {
	ocr Recogniser
}

// New creates an image normaliser backed by the given recogniser.
func New(r Recogniser) *Normaliser {
	return &Normaliser{ocr: r}
}

// Kind returns the file kind this normaliser extracts.
func (n *Normaliser) Kind() domain.FileKind {
	return domain.KindImage
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"image/png",
		"image/jpeg",
		"image/gif",
		"image/bmp",
		"image/tiff",
		"image/webp",
	}
}

// Normalise decodes the image, converts it to RGBA and recognises its text.
// An image with no recognisable text yields an empty document and a warning.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	canonical, format, err := toRGBAPNG(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailure, raw.URI, err)
	}

	path, cleanup, err := ocr.TempFile(canonical, ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: write temp file: %w", domain.ErrExtractionFailure, err)
	}
	defer cleanup()

	text, err := n.ocr.Recognise(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailure, raw.URI, err)
	}
	content := strings.TrimSpace(text)

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta[domain.MetaSource] = filepath.Base(raw.URI)
	meta[domain.MetaMIMEType] = "image/" + format
	meta[domain.MetaFileKind] = domain.KindImage.String()
	meta[domain.MetaOCR] = true

	result := &driven.NormaliseResult{
		Document: domain.Document{
			ID:        normalisers.DocumentID(raw.URI),
			URI:       raw.URI,
			Title:     normalisers.TitleFromURI(raw.URI),
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

// toRGBAPNG decodes any registered image format and re-encodes it as an
// 8-bit RGBA PNG. Palette, greyscale, CMYK and alpha variants all end up in
// the same colour model before OCR.
func toRGBAPNG(data []byte) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), format, nil
}
