// Package ocr runs the external text extraction tools: poppler's pdftotext
// and pdftoppm for PDFs, and tesseract for optical character recognition.
//
// All tools run through a CommandRunner so tests can substitute them.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 2 * time.Minute

// ErrToolNotFound indicates a required extraction tool is not installed.
var ErrToolNotFound = errors.New("extraction tool not found")

// CommandRunner executes external commands.
type CommandRunner interface {
	// Run executes name with args and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command, including stderr in the error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Config locates the tools.
type Config struct {
	// TesseractPath is the tesseract binary. Empty means "tesseract" on PATH.
	TesseractPath string

	// PopplerPath is the directory holding pdftotext and pdftoppm.
	// Empty means look them up on PATH.
	PopplerPath string

	// Language is the tesseract language code. Empty means "eng".
	Language string

	// Timeout bounds each invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (c Config) tesseract() string {
	if c.TesseractPath != "" {
		return c.TesseractPath
	}
	return "tesseract"
}

func (c Config) poppler(bin string) string {
	if c.PopplerPath != "" {
		return filepath.Join(c.PopplerPath, bin)
	}
	return bin
}

func (c Config) language() string {
	if c.Language != "" {
		return c.Language
	}
	return "eng"
}

// Engine wraps the extraction tools.
type Engine struct {
	runner CommandRunner
	config Config
}

// New creates an engine that executes the real tools.
func New(cfg Config) *Engine {
	return NewWithRunner(ExecRunner{}, cfg)
}

// NewWithRunner creates an engine with a custom command runner.
func NewWithRunner(runner CommandRunner, cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Engine{runner: runner, config: cfg}
}

// PDFText runs pdftotext on the file and returns the text of each page.
// Pages are separated by form feeds in pdftotext output.
func (e *Engine) PDFText(ctx context.Context, pdfPath string) ([]string, error) {
	out, err := e.run(ctx, e.config.poppler("pdftotext"), "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with a form feed.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

// Rasterise renders each page of the PDF to a PNG in outDir and returns
// the image paths in page order.
func (e *Engine) Rasterise(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	prefix := filepath.Join(outDir, "page")
	if _, err := e.run(ctx, e.config.poppler("pdftoppm"), "-r", "300", "-png", pdfPath, prefix); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w", err)
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sortPages(matches)
	return matches, nil
}

// Recognise runs tesseract on an image file and returns the recognised text.
// Page segmentation mode 6 treats the image as a single uniform block.
func (e *Engine) Recognise(ctx context.Context, imagePath string) (string, error) {
	out, err := e.run(ctx, e.config.tesseract(), imagePath, "stdout", "--psm", "6", "-l", e.config.language())
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return string(out), nil
}

func (e *Engine) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()
	return e.runner.Run(ctx, name, args...)
}

var pageNumber = regexp.MustCompile(`-(\d+)\.png$`)

// sortPages orders pdftoppm output by page number. pdftoppm zero-pads
// numbers only to the width of the page count, so lexical order is not enough.
func sortPages(paths []string) {
	num := func(p string) int {
		m := pageNumber.FindStringSubmatch(p)
		if m == nil {
			return 0
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return num(paths[i]) < num(paths[j])
	})
}

// CheckAvailable verifies the configured tools can be found.
func CheckAvailable(cfg Config) error {
	var missing []string
	for _, bin := range []string{cfg.poppler("pdftotext"), cfg.poppler("pdftoppm"), cfg.tesseract()} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, filepath.Base(bin))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrToolNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// InstallInstructions returns platform install hints for the tools.
func InstallInstructions() string {
	return `PDF and image extraction need poppler (pdftotext, pdftoppm) and tesseract:
  macOS:         brew install poppler tesseract
  Debian/Ubuntu: apt install poppler-utils tesseract-ocr
  Fedora:        dnf install poppler-utils tesseract
Set TESSERACT_PATH or POPPLER_PATH when they are not on PATH.`
}

// TempFile writes content to a new temporary file with the given extension
// and returns its path and a cleanup function.
func TempFile(content []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp("", "lexis-*"+ext)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
