package mcp

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	chunks []domain.RetrievedChunk
	err    error
	gotK   int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, k int) ([]domain.RetrievedChunk, error) {
	m.gotK = k
	return m.chunks, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer        domain.Answer
	gotQuestion   string
	gotAttachment *domain.Attachment
	gotConv       domain.Conversation
}

func (m *mockAnswerService) Answer(_ context.Context, _ driving.AnswerRequest) domain.Answer {
	return m.answer
}

func (m *mockAnswerService) Ask(
	_ context.Context, question string, attachment *domain.Attachment, conv domain.Conversation,
) domain.Answer {
	m.gotQuestion = question
	m.gotAttachment = attachment
	m.gotConv = conv
	return m.answer
}

// mockIndexReader is a mock implementation of IndexReader.
type mockIndexReader struct {
	info *domain.IndexInfo
	err  error
}

func (m *mockIndexReader) IndexInfo(_ context.Context) (*domain.IndexInfo, error) {
	return m.info, m.err
}

func retrieved(id, source string, seq int, score float64, content string) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{
			ID:            id,
			DocumentID:    "doc-" + source,
			Content:       content,
			SequenceIndex: seq,
			Metadata:      map[string]any{domain.MetaSource: source},
		},
		Score: score,
	}
}
