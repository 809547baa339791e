// Package pdf extracts text from PDF documents.
//
// Extraction is a two-stage pipeline. The structured stage reads the text
// layer with pdftotext. When that yields only whitespace (scanned documents),
// the OCR stage rasterises every page and recognises it with tesseract.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/logger"
	"github.com/custodia-labs/lexis/internal/normalisers"
	"github.com/custodia-labs/lexis/internal/normalisers/ocr"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// maxTitleLength is the longest first line accepted as a title.
const maxTitleLength = 200

// Extractor is the subset of the OCR engine the normaliser needs.
type Extractor interface {
	PDFText(ctx context.Context, pdfPath string) ([]string, error)
	Rasterise(ctx context.Context, pdfPath, outDir string) ([]string, error)
	Recognise(ctx context.Context, imagePath string) (string, error)
}

// Normaliser handles PDF documents.
type Normaliser struct {
	tools Extractor
}

// New creates a PDF normaliser backed by the given extraction tools.
func New(tools Extractor) *Normaliser {
	return &Normaliser{tools: tools}
}

// Kind returns the file kind this normaliser extracts.
func (n *Normaliser) Kind() domain.FileKind {
	return domain.KindPDF
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// stageResult is the outcome of one extraction stage. Empty text means the
// stage found nothing; err means the stage could not run.
type stageResult struct {
	text  string
	pages int
	err   error
}

func (r stageResult) empty() bool {
	return r.err != nil || strings.TrimSpace(r.text) == ""
}

// Normalise extracts the text of a PDF.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	path, cleanup, err := ocr.TempFile(raw.Content, ".pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: write temp file: %w", domain.ErrExtractionFailure, err)
	}
	defer cleanup()

	structured := n.extractText(ctx, path)
	result := structured
	usedOCR := false

	if structured.empty() {
		if structured.err != nil {
			logger.Debug("pdf: text layer unreadable for %s: %v", raw.URI, structured.err)
		} else {
			logger.Debug("pdf: no text layer in %s, falling back to OCR", raw.URI)
		}
		result = n.extractOCR(ctx, path)
		usedOCR = true
	}

	if result.err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailure, raw.URI, errors.Join(structured.err, result.err))
	}

	content := strings.TrimSpace(result.text)
	meta := normalisers.CopyMetadata(raw.Metadata)
	meta[domain.MetaSource] = filepath.Base(raw.URI)
	meta[domain.MetaMIMEType] = "application/pdf"
	meta[domain.MetaFileKind] = domain.KindPDF.String()
	meta[domain.MetaPageCount] = result.pages
	meta[domain.MetaOCR] = usedOCR

	out := &driven.NormaliseResult{
		Document: domain.Document{
			ID:        normalisers.DocumentID(raw.URI),
			URI:       raw.URI,
			Title:     extractTitle(content, raw.URI),
			Content:   content,
			Metadata:  meta,
			CreatedAt: time.Now(),
		},
	}
	if content == "" {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", raw.URI, domain.ErrNoTextFound))
	}
	return out, nil
}

// extractText reads the text layer, joining pages with newlines.
func (n *Normaliser) extractText(ctx context.Context, path string) stageResult {
	pages, err := n.tools.PDFText(ctx, path)
	if err != nil {
		return stageResult{err: err}
	}
	return stageResult{text: strings.Join(pages, "\n"), pages: len(pages)}
}

// extractOCR rasterises and recognises every page, tagging each with a
// page marker. Pages that fail recognition are logged and left empty.
func (n *Normaliser) extractOCR(ctx context.Context, path string) stageResult {
	dir, err := os.MkdirTemp("", "lexis-pages-*")
	if err != nil {
		return stageResult{err: err}
	}
	defer os.RemoveAll(dir)

	images, err := n.tools.Rasterise(ctx, path, dir)
	if err != nil {
		return stageResult{err: err}
	}

	var b strings.Builder
	recognised := false
	for i, img := range images {
		text, err := n.tools.Recognise(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return stageResult{err: ctx.Err()}
			}
			logger.Warn("pdf: OCR failed on page %d: %v", i+1, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			recognised = true
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", i+1, text)
	}

	if !recognised {
		return stageResult{pages: len(images)}
	}
	return stageResult{text: b.String(), pages: len(images)}
}

// extractTitle uses the first short non-empty line, falling back to the filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--- Page ") {
			continue
		}
		if len(line) <= maxTitleLength {
			return line
		}
	}

	return normalisers.TitleFromURI(uri)
}
