package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"note-search-go/internal/model"
	"note-search-go/pkg/embedding"
)

// EmbeddingExtractor 把文本交给外部向量模型，并记录模型名。
type EmbeddingExtractor struct {
	client embedding.Client
	model  string
}

// NewEmbeddingExtractor 创建一个新的 EmbeddingExtractor 实例。
func NewEmbeddingExtractor(client embedding.Client, modelName string) *EmbeddingExtractor {
	return &EmbeddingExtractor{client: client, model: modelName}
}

// Extract 计算文本向量。
func (e *EmbeddingExtractor) Extract(ctx context.Context, text string) (model.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return model.EmbeddingResult{}, errors.New("无法为空文本生成向量")
	}
	vector, err := e.client.CreateEmbedding(ctx, text)
	if err != nil {
		return model.EmbeddingResult{}, fmt.Errorf("生成向量失败: %w", err)
	}
	return model.EmbeddingResult{Embedding: vector, Model: e.model}, nil
}
