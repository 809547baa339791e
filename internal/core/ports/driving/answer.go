package driving

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// AnswerRequest holds everything an answer is a function of.
type AnswerRequest struct {
	// Question is the user question.
	Question string

	// Chunks are the retrieved chunks, in descending score order.
	Chunks []domain.RetrievedChunk

	// Attachment is optional uploaded document text.
	Attachment *domain.Attachment

	// Conversation is the history the question is asked in.
	Conversation domain.Conversation
}

// AnswerService answers questions from retrieved context.
type AnswerService interface {
	// Answer renders the prompt and generates an answer. Generation failures
	// do not return an error: the Answer carries Err and a displayable message.
	Answer(ctx context.Context, req AnswerRequest) domain.Answer

	// Ask retrieves context for the question and answers it.
	Ask(ctx context.Context, question string, attachment *domain.Attachment, conv domain.Conversation) domain.Answer
}
