package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Question string `json:"question" jsonschema:"the question to find relevant passages for"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages to return (default from configuration)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages []PassageOutput `json:"passages"`
	Count    int             `json:"count"`
}

// PassageOutput is one retrieved chunk.
type PassageOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Sequence   int     `json:"sequence"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// TurnInput is one earlier message of the conversation.
type TurnInput struct {
	Role    string `json:"role" jsonschema:"user or assistant"`
	Content string `json:"content"`
}

// AnswerInput is the input schema for the answer tool.
type AnswerInput struct {
	Question       string      `json:"question" jsonschema:"the legal question to answer"`
	AttachmentName string      `json:"attachment_name,omitempty" jsonschema:"file name of an attached document"`
	AttachmentText string      `json:"attachment_text,omitempty" jsonschema:"extracted text of an attached document"`
	History        []TurnInput `json:"history,omitempty" jsonschema:"earlier conversation turns, oldest first"`
}

// AnswerOutput is the output schema for the answer tool.
type AnswerOutput struct {
	Answer    string          `json:"answer"`
	Sources   []PassageOutput `json:"sources"`
	Truncated bool            `json:"truncated,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the passages of the legal corpus most similar to a question",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "answer",
		Description: "Answer a legal question from the indexed corpus and an optional attached document",
	}, s.handleAnswer)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	chunks, err := s.ports.Retrieval.Retrieve(ctx, input.Question, input.K)
	if err != nil {
		return nil, RetrieveOutput{}, fmt.Errorf("retrieve: %w", err)
	}

	return nil, RetrieveOutput{
		Passages: passages(chunks),
		Count:    len(chunks),
	}, nil
}

// handleAnswer handles the answer tool invocation. A failed generation is
// reported as a tool error carrying the displayable message.
func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AnswerOutput{}, fmt.Errorf("answer: %w: empty question", domain.ErrInvalidInput)
	}

	var attachment *domain.Attachment
	if input.AttachmentText != "" {
		name := input.AttachmentName
		if name == "" {
			name = "attachment"
		}
		attachment = &domain.Attachment{Name: name, Text: input.AttachmentText}
	}

	conv := domain.Conversation{}
	for _, t := range input.History {
		conv = conv.Append(domain.Turn{Role: domain.Role(t.Role), Content: t.Content})
	}

	answer := s.ports.Answers.Ask(ctx, input.Question, attachment, conv)
	if answer.Failed() {
		return nil, AnswerOutput{}, fmt.Errorf("answer: %s", answer.Text)
	}

	return nil, AnswerOutput{
		Answer:    answer.Text,
		Sources:   passages(answer.UsedChunks),
		Truncated: answer.Truncated,
	}, nil
}

func passages(chunks []domain.RetrievedChunk) []PassageOutput {
	out := make([]PassageOutput, len(chunks))
	for i, rc := range chunks {
		out[i] = PassageOutput{
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
