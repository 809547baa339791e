package evaluation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// Ensure Dataset implements the interface.
var _ driven.EvaluationDataset = (*Dataset)(nil)

// Dataset formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
)

// record is the on-disk shape of a case. ground_truth is accepted as an
// alias for answer so reports can be fed back in as datasets.
type record struct {
	Question    string `json:"question" yaml:"question"`
	Answer      string `json:"answer" yaml:"answer"`
	GroundTruth string `json:"ground_truth" yaml:"ground_truth"`
}

func (r record) toCase() domain.EvalCase {
	ref := r.Answer
	if ref == "" {
		ref = r.GroundTruth
	}
	return domain.EvalCase{Question: strings.TrimSpace(r.Question), Reference: strings.TrimSpace(ref)}
}

// Dataset reads evaluation cases from a file.
type Dataset struct {
	path   string
	format string
}

// NewDataset creates a dataset for path. The format follows the extension.
func NewDataset(path string) (*Dataset, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	return &Dataset{path: path, format: format}, nil
}

// FormatFor maps a file extension to a dataset format.
func FormatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: dataset %s: expected .json, .jsonl, .yaml or .csv", domain.ErrUnsupportedType, path)
	}
}

// Cases returns all cases in file order.
func (d *Dataset) Cases(_ context.Context) ([]domain.EvalCase, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	cases, err := Decode(f, d.format)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	return cases, nil
}

// Decode reads cases in the given format.
func Decode(r io.Reader, format string) ([]domain.EvalCase, error) {
	var (
		records []record
		err     error
	)
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&records)
	case FormatJSONL:
		records, err = decodeJSONL(r)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&records)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case FormatCSV:
		records, err = decodeCSV(r)
	default:
		return nil, fmt.Errorf("%w: dataset format %q", domain.ErrUnsupportedType, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	cases := make([]domain.EvalCase, 0, len(records))
	for i, rec := range records {
		c := rec.toCase()
		if c.Question == "" {
			return nil, fmt.Errorf("%w: case %d has no question", domain.ErrInvalidInput, i+1)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func decodeJSONL(r io.Reader) ([]record, error) {
	var records []record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func decodeCSV(r io.Reader) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	qCol, aCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "question":
			qCol = i
		case "answer", "ground_truth":
			if aCol == -1 {
				aCol = i
			}
		}
	}
	if qCol == -1 || aCol == -1 {
		return nil, errors.New("csv header must name question and answer columns")
	}

	var records []record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		rec := record{}
		if qCol < len(row) {
			rec.Question = row[qCol]
		}
		if aCol < len(row) {
			rec.Answer = row[aCol]
		}
		records = append(records, rec)
	}
}
