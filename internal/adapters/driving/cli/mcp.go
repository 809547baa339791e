package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI assistant integration",
	Long: `Starts a Model Context Protocol server exposing the retrieve and answer
tools and the lexis://index resource.

By default the server speaks over stdio. Use --http to serve the
streamable HTTP transport at /mcp instead; /healthz answers plain
liveness probes.

Example Claude Desktop configuration:

  {
    "mcpServers": {
      "lexis": {
        "command": "lexis",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	retrieval, err := r.Retrieval(cmd.Context())
	if err != nil {
		return err
	}
	answers, err := r.Answers(cmd.Context())
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Retrieval: retrieval,
		Answers:   answers,
		Index:     r,
	}, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	if mcpHTTPAddr != "" {
		cmd.PrintErrf("MCP server listening on %s\n", mcpHTTPAddr)
		return server.RunHTTP(cmd.Context(), mcpHTTPAddr)
	}
	// stdout carries the protocol.
	return server.Run(cmd.Context())
}
