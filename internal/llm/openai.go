package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/config"
	"github.com/verseware/studyrag/pkg/utils"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient is a minimal REST client for the OpenAI embeddings and chat
// completions endpoints.
type OpenAIClient struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	dimensions     int
	batchSize      int
	retryLimit     int
	client         *http.Client
	logger         *zap.Logger
}

// NewOpenAIClient creates a client from config. The API key is read from the
// environment variable named in cfg.APIKeyEnv and is required.
func NewOpenAIClient(cfg config.ProviderConfig, retrieval config.RetrievalConfig, logger *zap.Logger) (*OpenAIClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		baseURL:        baseURL,
		apiKey:         key,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.Dimensions,
		batchSize:      retrieval.BatchSize,
		retryLimit:     retrieval.RetryLimit,
		client:         &http.Client{Timeout: cfg.Timeout()},
		logger:         logger,
	}, nil
}

// Dimensions returns the configured embedding dimensionality.
func (c *OpenAIClient) Dimensions() int { return c.dimensions }

// EmbedBatch embeds texts in sub-batches of the configured size, preserving
// input order. Partial results are never returned: any batch failing after
// retries fails the whole call with ErrEmbedding.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *OpenAIClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{"input": texts, "model": c.embeddingModel}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	err := withRetry(ctx, c.retryLimit, c.logger, "openai embeddings", func() error {
		return c.postJSON(ctx, "/embeddings", reqBody, &out)
	})
	if err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(out.Data))
	}
	// The API tags each embedding with its input index; honor it rather than
	// assuming response order.
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		utils.NormalizeL2(d.Embedding)
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Generate sends the prompt to the chat completions endpoint (temperature 0)
// and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":       c.chatModel,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := withRetry(ctx, c.retryLimit, c.logger, "openai chat", func() error {
		return c.postJSON(ctx, "/chat/completions", reqBody, &out)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGeneration)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpStatusError{status: resp.StatusCode, body: string(snippet)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
