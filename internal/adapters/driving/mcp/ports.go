package mcp

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
)

// IndexReader reports on the saved index.
type IndexReader interface {
	IndexInfo(ctx context.Context) (*domain.IndexInfo, error)
}

// Ports aggregates the driving ports the MCP server needs.
type Ports struct {
	// Retrieval finds passages similar to a question.
	Retrieval driving.RetrievalService

	// Answers answers questions from retrieved passages.
	Answers driving.AnswerService

	// Index describes the saved index. Optional.
	Index IndexReader
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Answers == nil {
		return ErrMissingAnswerService
	}
	return nil
}
