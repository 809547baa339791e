// Package filesystem reads a corpus from a local directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure Corpus implements the interface.
var _ driven.Corpus = (*Corpus)(nil)

// ErrClosed is returned when watching a closed corpus.
var ErrClosed = errors.New("corpus is closed")

// Corpus walks and watches a directory tree.
type Corpus struct {
	root string

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// New creates a corpus rooted at root.
func New(root string) *Corpus {
	return &Corpus{root: root}
}

// Root returns the corpus root directory.
func (c *Corpus) Root() string {
	return c.root
}

// Walk emits every regular, non-hidden file below the root.
func (c *Corpus) Walk(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 16)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.checkRoot(); err != nil {
			errs <- err
			return
		}

		err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				if path == c.root {
					return walkErr
				}
				return send(ctx, errs, walkErr)
			}
			if path != c.root && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			doc, err := c.read(path)
			if err != nil {
				return send(ctx, errs, err)
			}
			select {
			case docs <- *doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			select {
			case errs <- err:
			default:
				logger.Warn("walk %s: %v", c.root, err)
			}
		}
	}()

	return docs, errs
}

// Watch emits created, updated and deleted files until ctx is cancelled.
// New subdirectories are watched as they appear.
func (c *Corpus) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	if err := c.checkRoot(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := c.addTree(watcher, c.root); err != nil {
		watcher.Close()
		return nil, err
	}

	c.mu.Lock()
	c.watchers = append(c.watchers, watcher)
	c.mu.Unlock()

	changes := make(chan domain.RawDocumentChange)
	go func() {
		defer close(changes)
		defer c.release(watcher)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
						if err := c.addTree(watcher, event.Name); err != nil {
							logger.Warn("watching %s: %v", event.Name, err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch %s: %v", c.root, err)
			}
		}
	}()

	return changes, nil
}

// Close stops all watchers. Safe to call more than once.
func (c *Corpus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, w := range c.watchers {
		errs = append(errs, w.Close())
	}
	c.watchers = nil
	return errors.Join(errs...)
}

func (c *Corpus) release(w *fsnotify.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.watchers {
		if existing == w {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			w.Close()
			return
		}
	}
}

// handleFsEvent converts an fsnotify event to a change, or nil when the
// event is not relevant.
func (c *Corpus) handleFsEvent(event fsnotify.Event) *domain.RawDocumentChange {
	if isHidden(c.relative(event.Name)) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.RawDocumentChange{
			Type: domain.ChangeDeleted,
			Document: domain.RawDocument{
				URI:      event.Name,
				MIMEType: detectMIMEType(event.Name),
				Metadata: metadata(event.Name),
			},
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		doc, err := c.read(event.Name)
		if err != nil {
			logger.Warn("reading %s: %v", event.Name, err)
			return nil
		}
		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return &domain.RawDocumentChange{Type: changeType, Document: *doc}
	default:
		return nil
	}
}

func (c *Corpus) addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (c *Corpus) checkRoot() error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", c.root)
	}
	return nil
}

func (c *Corpus) read(path string) (*domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &domain.RawDocument{
		URI:      path,
		MIMEType: detectMIMEType(path),
		Content:  content,
		Metadata: metadata(path),
	}, nil
}

func (c *Corpus) relative(path string) string {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

func metadata(path string) map[string]any {
	return map[string]any{
		"filename":  filepath.Base(path),
		"extension": strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}
}

func send(ctx context.Context, errs chan<- error, err error) error {
	select {
	case errs <- err:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var fallbackMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".tif":      "image/tiff",
	".tiff":     "image/tiff",
	".bmp":      "image/bmp",
	".webp":     "image/webp",
}

// detectMIMEType guesses a MIME type from the extension. Files without an
// extension are treated as plain text.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if mt, ok := fallbackMIMETypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if idx := strings.Index(mt, ";"); idx != -1 {
			mt = strings.TrimSpace(mt[:idx])
		}
		return mt
	}
	return "application/octet-stream"
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for part := range strings.SplitSeq(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
