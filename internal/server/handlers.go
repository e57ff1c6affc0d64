package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/llm"
	"github.com/verseware/studyrag/internal/retriever"
)

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// maxAskTopK bounds the per-request top_k override. Retrieval is configured
// by top_k in the config file; the request field exists for experimentation
// and must not let a client force an arbitrarily large scan and prompt.
const maxAskTopK = 20

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	k := req.TopK
	if k < 0 || k > maxAskTopK {
		k = 0 // fall back to the configured default
	}
	s.logger.Debug("ask request", zap.String("question", question), zap.Int("top_k", k))

	ctx := r.Context()
	retrieved, err := s.retriever.Retrieve(ctx, question, k)
	if err != nil {
		switch {
		case errors.Is(err, retriever.ErrEmptyIndex):
			s.respondError(w, http.StatusConflict, "no documents ingested yet; run ingestion first")
		case errors.Is(err, llm.ErrEmbedding):
			s.logger.Error("embedding failed", zap.Error(err))
			s.respondError(w, http.StatusServiceUnavailable, "embedding service unavailable")
		default:
			s.logger.Error("retrieval failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	ans, err := s.composer.Compose(ctx, question, retrieved)
	if err != nil {
		if errors.Is(err, llm.ErrGeneration) {
			s.logger.Error("generation failed", zap.Error(err))
			s.respondError(w, http.StatusServiceUnavailable, "generation service unavailable")
			return
		}
		s.logger.Error("compose failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

type ingestRequest struct {
	ForceRebuild bool `json:"force_rebuild,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s.logger.Debug("ingest request", zap.Bool("force_rebuild", req.ForceRebuild))
	report, err := s.ingestor.IngestAll(r.Context(), req.ForceRebuild)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.index.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
		"config": map[string]interface{}{
			"provider":        s.config.Provider.Name,
			"embedding_model": s.config.Provider.EmbeddingModel,
			"chat_model":      s.config.Provider.ChatModel,
			"dimensions":      s.config.Provider.Dimensions,
			"chunk_size":      s.config.Retrieval.ChunkSize,
			"chunk_overlap":   s.config.Retrieval.ChunkOverlap,
			"top_k":           s.config.Retrieval.TopK,
			"database_path":   s.config.Storage.DatabasePath,
			"pdf_dir":         s.config.Library.PDFDir,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
