package driving

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// EvaluationService runs batch evaluation of retrieval plus generation.
type EvaluationService interface {
	// Evaluate answers every case, scores it against its reference and
	// returns per-case records with the mean score.
	Evaluate(ctx context.Context, cases []domain.EvalCase) (*domain.EvalReport, error)
}
