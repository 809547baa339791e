package driven

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// EvaluationSink receives evaluation records as they are produced.
type EvaluationSink interface {
	// Write records the outcome of one case.
	Write(record domain.EvalRecord) error

	// Close flushes buffered records.
	Close() error
}

// EvaluationDataset loads question/reference pairs.
type EvaluationDataset interface {
	// Cases returns all cases in file order.
	Cases(ctx context.Context) ([]domain.EvalCase, error)
}

// AnswerScorer compares a generated answer with a reference answer.
type AnswerScorer interface {
	// Name identifies the metric in reports.
	Name() string

	// Score returns a similarity in [0, 1].
	Score(reference, answer string) float64
}
