package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexis/internal/logger"
)

// DefaultVersion is reported to clients when no version is set.
const DefaultVersion = "dev"

const (
	mcpPath         = "/mcp"
	healthPath      = "/healthz"
	shutdownTimeout = 5 * time.Second
)

const instructions = `Lexis answers questions about a local corpus of legal documents.
Use "retrieve" to see the passages most similar to a question and
"answer" to get a grounded answer with its sources. Read lexis://index
to see which embedding model built the index and how large it is.`

// Option configures a Server.
type Option func(*options)

type options struct {
	version string
}

// WithVersion sets the version reported in the initialize handshake.
func WithVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

// Server exposes retrieval and answering as MCP tools.
type Server struct {
	ports   *Ports
	server  *mcp.Server
	version string
}

// NewServer creates an MCP server and registers its tools and resources.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	o := options{version: DefaultVersion}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		ports:   ports,
		version: o.version,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "lexis", Version: o.version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("mcp: serving on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP transport mounted at /mcp, plus a
// plain /healthz probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(mcpPath, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil))
	mux.HandleFunc("GET "+healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ok %s\n", s.version)
	})
	return mux
}

// RunHTTP serves Handler on addr until ctx ends.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Info("mcp: serving on http://%s%s", addr, mcpPath)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
