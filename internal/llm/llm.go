// Package llm provides gateways to external embedding and generation services.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/config"
)

// ErrEmbedding is returned when the embedding service is still failing after
// the retry budget is exhausted. The cause is wrapped.
var ErrEmbedding = errors.New("embedding service unavailable")

// ErrGeneration is the generation-side counterpart of ErrEmbedding.
var ErrGeneration = errors.New("generation service unavailable")

// Embedder converts text into fixed-dimension vectors. Query strings and
// chunk strings go through the same EmbedBatch path so both land in the same
// vector space. Returned vectors are L2-normalized.
type Embedder interface {
	// EmbedBatch returns one vector per input text, same order and length.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the embedding dimensionality the service is configured for.
	Dimensions() int
}

// Generator produces text from a prompt via an external chat model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider bundles the two gateways of a configured backend.
type Provider interface {
	Embedder
	Generator
}

// New creates the provider named in cfg. Both gateways share transport,
// timeout, and retry settings.
func New(cfg config.ProviderConfig, retrieval config.RetrievalConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Name {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, retrieval, logger)
	case config.ProviderOllama:
		return NewOllamaClient(cfg, retrieval, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
