// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"note-search-go/internal/config"
	"note-search-go/pkg/log"
	"note-search-go/pkg/metrics"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// OpenAIClient talks to any OpenAI-compatible embeddings endpoint.
type OpenAIClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewClient creates a new embedding client from the embedding config.
func NewClient(cfg config.EmbeddingConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}
}

// CreateEmbedding returns the vector for a given text.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	log.Debugf("[EmbeddingClient] 调用 Embedding API, model: %s, input_len: %d", c.model, len(text))
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, fmt.Errorf("embedding api returned status %d: %w", reqErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, errors.New("received empty embedding from api")
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("success").Inc()
	return resp.Data[0].Embedding, nil
}
