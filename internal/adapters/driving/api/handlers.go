package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Question string `json:"question" binding:"required"`
	K        int    `json:"k" binding:"gte=0"`
}

// AttachmentRequest is uploaded document text.
type AttachmentRequest struct {
	Name string `json:"name"`
	Text string `json:"text" binding:"required"`
}

// TurnRequest is one earlier conversation message.
type TurnRequest struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// AnswerRequest is the body of POST /api/v1/answer.
type AnswerRequest struct {
	Question   string             `json:"question" binding:"required"`
	Attachment *AttachmentRequest `json:"attachment"`
	History    []TurnRequest      `json:"history" binding:"dive"`
}

// Passage is one retrieved chunk in a response.
type Passage struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Sequence   int     `json:"sequence"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// RetrieveResponse is the body returned by POST /api/v1/retrieve.
type RetrieveResponse struct {
	Passages []Passage `json:"passages"`
	Count    int       `json:"count"`
}

// AnswerResponse is the body returned by POST /api/v1/answer.
type AnswerResponse struct {
	Answer         string    `json:"answer"`
	Sources        []Passage `json:"sources"`
	Truncated      bool      `json:"truncated,omitempty"`
	AttachmentName string    `json:"attachment_name,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "lexis",
		"version": Version,
	}
	if s.ports.Index != nil {
		if info, err := s.ports.Index.IndexInfo(c.Request.Context()); err == nil {
			body["index"] = gin.H{
				"embedding_model": info.EmbeddingModel,
				"dimensions":      info.Dimensions,
				"chunks":          info.Chunks,
				"documents":       info.Documents,
			}
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	chunks, err := s.ports.Retrieval.Retrieve(c.Request.Context(), req.Question, req.K)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, RetrieveResponse{Passages: passages(chunks), Count: len(chunks)})
}

func (s *Server) answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	var attachment *domain.Attachment
	if req.Attachment != nil {
		name := req.Attachment.Name
		if name == "" {
			name = "attachment"
		}
		attachment = &domain.Attachment{Name: name, Text: req.Attachment.Text}
	}

	conv := domain.Conversation{}
	for _, t := range req.History {
		conv = conv.Append(domain.Turn{Role: domain.Role(t.Role), Content: t.Content})
	}

	answer := s.ports.Answers.Ask(c.Request.Context(), req.Question, attachment, conv)
	if answer.Failed() {
		c.JSON(statusFor(answer.Err), gin.H{"error": answer.Text})
		return
	}

	c.JSON(http.StatusOK, AnswerResponse{
		Answer:         answer.Text,
		Sources:        passages(answer.UsedChunks),
		Truncated:      answer.Truncated,
		AttachmentName: answer.AttachmentName,
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsUnavailable(err), errors.Is(err, domain.ErrCorruptOrMissingIndex):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func passages(chunks []domain.RetrievedChunk) []Passage {
	out := make([]Passage, len(chunks))
	for i, rc := range chunks {
		out[i] = Passage{
			ChunkID:    rc.Chunk.ID,
			DocumentID: rc.Chunk.DocumentID,
			Source:     rc.Chunk.Source(),
			Sequence:   rc.Chunk.SequenceIndex,
			Score:      rc.Score,
			Content:    rc.Chunk.Content,
		}
	}
	return out
}
