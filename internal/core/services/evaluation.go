package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Ensure EvaluationService implements the interface.
var _ driving.EvaluationService = (*EvaluationService)(nil)

// Ensure LexicalOverlap implements the interface.
var _ driven.AnswerScorer = LexicalOverlap{}

// EvaluationService answers every case, scores it and streams records to a sink.
type EvaluationService struct {
	answers driving.AnswerService
	scorer  driven.AnswerScorer
	sink    driven.EvaluationSink
}

// NewEvaluationService creates an evaluation service. A nil scorer uses
// LexicalOverlap; a nil sink discards records.
func NewEvaluationService(
	answers driving.AnswerService,
	scorer driven.AnswerScorer,
	sink driven.EvaluationSink,
) *EvaluationService {
	if scorer == nil {
		scorer = LexicalOverlap{}
	}
	return &EvaluationService{
		answers: answers,
		scorer:  scorer,
		sink:    sink,
	}
}

// Evaluate answers every case in order. A failed answer scores its error
// text like any other answer and is flagged in its record.
func (s *EvaluationService) Evaluate(ctx context.Context, cases []domain.EvalCase) (*domain.EvalReport, error) {
	logger.Section("Evaluation")
	logger.Info("evaluating %d cases with %s", len(cases), s.scorer.Name())

	report := &domain.EvalReport{Records: make([]domain.EvalRecord, 0, len(cases))}
	total := 0.0

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		answer := s.answers.Ask(ctx, c.Question, nil, domain.Conversation{})
		record := domain.EvalRecord{
			Question:  c.Question,
			Reference: c.Reference,
			Answer:    answer.Text,
			Score:     s.scorer.Score(c.Reference, answer.Text),
			Failed:    answer.Failed(),
		}
		report.Records = append(report.Records, record)
		total += record.Score

		if s.sink != nil {
			if err := s.sink.Write(record); err != nil {
				return report, err
			}
		}
		logger.Debug("case %d/%d scored %.2f", i+1, len(cases), record.Score)
	}

	if len(report.Records) > 0 {
		report.Overall = total / float64(len(report.Records))
	}
	return report, nil
}

// LexicalOverlap scores the share of reference words present in the answer,
// over lower-cased whitespace-separated word sets.
type LexicalOverlap struct{}

// Name identifies the metric.
func (LexicalOverlap) Name() string {
	return "lexical_overlap"
}

// Score returns |ref ∩ ans| / max(|ref|, 1). An empty reference scores 0.
func (LexicalOverlap) Score(reference, answer string) float64 {
	ref := wordSet(reference)
	if len(ref) == 0 {
		return 0
	}
	ans := wordSet(answer)

	common := 0
	for w := range ref {
		if _, ok := ans[w]; ok {
			common++
		}
	}
	return float64(common) / float64(max(len(ref), 1))
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for w := range strings.FieldsSeq(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}
