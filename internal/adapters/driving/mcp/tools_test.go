package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

func newTestServer(t *testing.T, retrieval *mockRetrievalService, answers *mockAnswerService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Retrieval: retrieval, Answers: answers})
	require.NoError(t, err)
	return server
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages", func(t *testing.T) {
		retrieval := &mockRetrievalService{chunks: []domain.RetrievedChunk{
			retrieved("c1", "lease.pdf", 2, 0.91, "The tenant shall give thirty days notice."),
			retrieved("c2", "act.txt", 0, 0.42, "Section 4 applies."),
		}}
		server := newTestServer(t, retrieval, &mockAnswerService{})

		_, out, err := server.handleRetrieve(ctx, nil, RetrieveInput{Question: "notice period?", K: 2})

		require.NoError(t, err)
		assert.Equal(t, 2, retrieval.gotK)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, PassageOutput{
			ChunkID:    "c1",
			DocumentID: "doc-lease.pdf",
			Source:     "lease.pdf",
			Sequence:   2,
			Score:      0.91,
			Content:    "The tenant shall give thirty days notice.",
		}, out.Passages[0])
	})

	t.Run("passes k through for the default", func(t *testing.T) {
		retrieval := &mockRetrievalService{}
		server := newTestServer(t, retrieval, &mockAnswerService{})

		_, out, err := server.handleRetrieve(ctx, nil, RetrieveInput{Question: "q"})

		require.NoError(t, err)
		assert.Equal(t, 0, retrieval.gotK)
		assert.Empty(t, out.Passages)
	})

	t.Run("wraps retrieval errors", func(t *testing.T) {
		retrieval := &mockRetrievalService{err: domain.ErrEmbeddingUnavailable}
		server := newTestServer(t, retrieval, &mockAnswerService{})

		_, _, err := server.handleRetrieve(ctx, nil, RetrieveInput{Question: "q"})

		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestServer_handleAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with sources", func(t *testing.T) {
		answers := &mockAnswerService{answer: domain.Answer{
			Text:       "Thirty days.",
			UsedChunks: []domain.RetrievedChunk{retrieved("c1", "lease.pdf", 0, 0.8, "notice")},
		}}
		server := newTestServer(t, &mockRetrievalService{}, answers)

		_, out, err := server.handleAnswer(ctx, nil, AnswerInput{
			Question: "What is the notice period?",
			History: []TurnInput{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi"},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "Thirty days.", out.Answer)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "lease.pdf", out.Sources[0].Source)
		assert.Equal(t, "What is the notice period?", answers.gotQuestion)
		assert.Nil(t, answers.gotAttachment)
		require.Len(t, answers.gotConv.Turns, 2)
		assert.Equal(t, domain.RoleAssistant, answers.gotConv.Turns[1].Role)
	})

	t.Run("builds attachment", func(t *testing.T) {
		answers := &mockAnswerService{answer: domain.Answer{Text: "ok", Truncated: true}}
		server := newTestServer(t, &mockRetrievalService{}, answers)

		_, out, err := server.handleAnswer(ctx, nil, AnswerInput{
			Question:       "Is clause 3 valid?",
			AttachmentText: "Clause 3: ...",
		})

		require.NoError(t, err)
		assert.True(t, out.Truncated)
		require.NotNil(t, answers.gotAttachment)
		assert.Equal(t, "attachment", answers.gotAttachment.Name)
	})

	t.Run("rejects empty question", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{}, &mockAnswerService{})

		_, _, err := server.handleAnswer(ctx, nil, AnswerInput{Question: "  "})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("failed answer becomes tool error", func(t *testing.T) {
		answers := &mockAnswerService{answer: domain.Answer{
			Text: "Error generating response: provider down",
			Err:  errors.New("provider down"),
		}}
		server := newTestServer(t, &mockRetrievalService{}, answers)

		_, _, err := server.handleAnswer(ctx, nil, AnswerInput{Question: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Error generating response: provider down")
	})
}
