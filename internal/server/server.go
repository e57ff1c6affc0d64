// Package server provides the HTTP API for studyrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/config"
	"github.com/verseware/studyrag/internal/models"
	"github.com/verseware/studyrag/internal/vector"
)

// Retriever finds the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error)
}

// Composer turns retrieved chunks into a grounded answer.
type Composer interface {
	Compose(ctx context.Context, question string, retrieved []models.ScoredChunk) (models.Answer, error)
}

// Ingestor runs an ingestion pass over the document library.
type Ingestor interface {
	IngestAll(ctx context.Context, forceRebuild bool) (models.Report, error)
}

// Server is the HTTP server for the studyrag API.
type Server struct {
	retriever Retriever
	composer  Composer
	ingestor  Ingestor
	index     vector.Index
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	retriever Retriever,
	composer Composer,
	ingestor Ingestor,
	index vector.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		retriever: retriever,
		composer:  composer,
		ingestor:  ingestor,
		index:     index,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the API router. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
