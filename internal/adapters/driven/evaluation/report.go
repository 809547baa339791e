package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Ensure sinks implement the interface.
var (
	_ driven.EvaluationSink = (*CSVSink)(nil)
	_ driven.EvaluationSink = (*JSONLSink)(nil)
)

// ReportHeader is the column order of CSV reports.
var ReportHeader = []string{"question", "ground_truth", "answer", "score"}

// CSVSink writes records as CSV rows. The header is written with the
// first row, or on Close when there were none.
type CSVSink struct {
	mu      sync.Mutex
	w       *csv.Writer
	closer  io.Closer
	started bool
}

// NewCSVSink creates a CSV report writer on w.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Write appends one row. Scores are rounded to two decimals.
func (s *CSVSink) Write(record domain.EvalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.header(); err != nil {
		return err
	}
	row := []string{
		record.Question,
		record.Reference,
		record.Answer,
		strconv.FormatFloat(record.Score, 'f', 2, 64),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("writing report row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes the report and closes the underlying file, if any.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.header()
	s.w.Flush()
	err = errors.Join(err, s.w.Error())
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
		s.closer = nil
	}
	return err
}

func (s *CSVSink) header() error {
	if s.started {
		return nil
	}
	s.started = true
	if err := s.w.Write(ReportHeader); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	return nil
}

// JSONLSink writes one JSON object per record.
type JSONLSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLSink creates a JSON Lines report writer on w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	s := &JSONLSink{enc: json.NewEncoder(w)}
	s.enc.SetEscapeHTML(false)
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Write appends one record.
func (s *JSONLSink) Write(record domain.EvalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("writing report record: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// CreateSink creates the report file at path and returns a sink for it.
// Files ending in .jsonl or .ndjson get JSON Lines, everything else CSV.
func CreateSink(path string) (driven.EvaluationSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return NewJSONLSink(f), nil
	default:
		return NewCSVSink(f), nil
	}
}
