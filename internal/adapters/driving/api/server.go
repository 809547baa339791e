// Package api serves retrieval and question answering over HTTP.
//
// Routes:
//
//	GET  /health
//	POST /api/v1/retrieve
//	POST /api/v1/answer
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

var (
	// ErrMissingRetrievalService is returned when the retrieval service is not provided.
	ErrMissingRetrievalService = errors.New("api: retrieval service is required")

	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("api: answer service is required")
)

// IndexReader reports on the saved index.
type IndexReader interface {
	IndexInfo(ctx context.Context) (*domain.IndexInfo, error)
}

// Ports aggregates the driving ports the HTTP server needs.
type Ports struct {
	Retrieval driving.RetrievalService
	Answers   driving.AnswerService

	// Index is optional; without it /health omits index details.
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

// Server is the HTTP API.
type Server struct {
	ports  *Ports
	router *gin.Engine
}

// NewServer creates the server and registers its routes.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{ports: ports, router: router}

	router.GET("/health", s.health)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/retrieve", s.retrieve)
		v1.POST("/answer", s.answer)
	}

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
