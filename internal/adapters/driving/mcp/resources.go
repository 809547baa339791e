package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IndexURI is the resource describing the saved index.
const IndexURI = "lexis://index"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         IndexURI,
		Name:        "index",
		Description: "Embedding model, dimensions and size of the loaded index",
		MIMEType:    "application/json",
	}, s.handleIndexResource)
}

type indexInfo struct {
	Path           string `json:"path"`
	EmbeddingModel string `json:"embedding_model"`
	Dimensions     int    `json:"dimensions"`
	Chunks         int    `json:"chunks"`
	Documents      int    `json:"documents"`
}

// handleIndexResource returns the index manifest as JSON.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	info, err := s.ports.Index.IndexInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index info: %w", err)
	}

	data, err := json.MarshalIndent(indexInfo{
		Path:           info.Path,
		EmbeddingModel: info.EmbeddingModel,
		Dimensions:     info.Dimensions,
		Chunks:         info.Chunks,
		Documents:      info.Documents,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling index info: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
