// Package retriever answers similarity queries over the vector index.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/llm"
	"github.com/verseware/studyrag/internal/models"
	"github.com/verseware/studyrag/internal/vector"
)

// ErrEmptyIndex is returned when retrieval runs against an index that has
// never been ingested into. Distinct from a query that simply matches nothing.
var ErrEmptyIndex = errors.New("no documents have been ingested yet")

// Retriever embeds a question and returns the top-k nearest chunks.
type Retriever struct {
	embedder llm.Embedder
	index    vector.Index
	topK     int
	logger   *zap.Logger
}

// New creates a retriever. topK is the default result count; logger may be nil.
func New(embedder llm.Embedder, index vector.Index, topK int, logger *zap.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, topK: topK, logger: logger}
}

// Retrieve embeds the question through the same gateway path as chunk text
// and queries the index. k <= 0 selects the configured default; the parameter
// exists so tests can override it.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = r.topK
	}
	count, err := r.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}
	vectors, err := r.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	results, err := r.index.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if r.logger != nil {
		r.logger.Debug("retrieved chunks",
			zap.Int("k", k),
			zap.Int("results", len(results)),
		)
	}
	return results, nil
}
