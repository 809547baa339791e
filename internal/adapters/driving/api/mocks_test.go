package api

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

type mockRetrievalService struct {
	chunks      []domain.RetrievedChunk
	err         error
	gotQuestion string
	gotK        int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, question string, k int) ([]domain.RetrievedChunk, error) {
	m.gotQuestion = question
	m.gotK = k
	return m.chunks, m.err
}

type mockAnswerService struct {
	answer        domain.Answer
	gotAttachment *domain.Attachment
	gotConv       domain.Conversation
}

func (m *mockAnswerService) Answer(_ context.Context, _ driving.AnswerRequest) domain.Answer {
	return m.answer
}

func (m *mockAnswerService) Ask(
	_ context.Context, _ string, attachment *domain.Attachment, conv domain.Conversation,
) domain.Answer {
	m.gotAttachment = attachment
	m.gotConv = conv
	return m.answer
}

type mockIndexReader struct {
	info *domain.IndexInfo
	err  error
}

func (m *mockIndexReader) IndexInfo(_ context.Context) (*domain.IndexInfo, error) {
	return m.info, m.err
}
