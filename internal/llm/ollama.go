package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/config"
	"github.com/verseware/studyrag/pkg/utils"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaClient talks to a local Ollama instance for embeddings and generation.
type OllamaClient struct {
	client         *api.Client
	embeddingModel string
	chatModel      string
	dimensions     int
	batchSize      int
	retryLimit     int
	logger         *zap.Logger
}

// NewOllamaClient creates a client for the host in cfg.BaseURL (defaults to
// the standard local Ollama address).
func NewOllamaClient(cfg config.ProviderConfig, retrieval config.RetrievalConfig, logger *zap.Logger) (*OllamaClient, error) {
	host := cfg.BaseURL
	if host == "" {
		host = defaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &OllamaClient{
		client:         api.NewClient(u, &http.Client{Timeout: cfg.Timeout()}),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.Dimensions,
		batchSize:      retrieval.BatchSize,
		retryLimit:     retrieval.RetryLimit,
		logger:         logger,
	}, nil
}

// Dimensions returns the configured embedding dimensionality.
func (c *OllamaClient) Dimensions() int { return c.dimensions }

// EmbedBatch embeds texts in configured sub-batches, preserving order.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		var resp *api.EmbedResponse
		err := withRetry(ctx, c.retryLimit, c.logger, "ollama embed", func() error {
			var callErr error
			resp, callErr = c.client.Embed(ctx, &api.EmbedRequest{
				Model: c.embeddingModel,
				Input: batch,
			})
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings", ErrEmbedding, len(batch), len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			vec := make([]float32, len(emb))
			for i, v := range emb {
				vec[i] = float32(v)
			}
			utils.NormalizeL2(vec)
			vectors = append(vectors, vec)
		}
	}
	return vectors, nil
}

// Generate runs the chat model on the prompt without streaming.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{Model: c.chatModel, Prompt: prompt, Stream: &stream}
	var out strings.Builder
	err := withRetry(ctx, c.retryLimit, c.logger, "ollama generate", func() error {
		out.Reset()
		return c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
			out.WriteString(resp.Response)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return out.String(), nil
}
