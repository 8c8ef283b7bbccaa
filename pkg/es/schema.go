package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"note-search-go/pkg/log"
)

// Schema 描述一个索引的名字与建索引时提交的 settings/mappings。
type Schema struct {
	Index string
	Body  map[string]any
}

func analysisSettings() map[string]any {
	return map[string]any{
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"note_analyzer": map[string]any{"type": "standard"},
			},
		},
	}
}

// NotesSchema 返回笔记索引的结构。
func NotesSchema(index string) Schema {
	return Schema{
		Index: index,
		Body: map[string]any{
			"settings": analysisSettings(),
			"mappings": map[string]any{
				"properties": map[string]any{
					"content":  map[string]any{"type": "text", "analyzer": "note_analyzer"},
					"name":     map[string]any{"type": "text"},
					"keywords": map[string]any{"type": "keyword"},
					"summary":  map[string]any{"type": "text"},
					"path":     map[string]any{"type": "text"},
					"topic":    map[string]any{"type": "keyword"},
				},
			},
		},
	}
}

// ArticlesSchema 返回文献索引的结构，dims 为向量维度。
func ArticlesSchema(index string, dims int) Schema {
	return Schema{
		Index: index,
		Body: map[string]any{
			"settings": analysisSettings(),
			"mappings": map[string]any{
				"properties": map[string]any{
					"content":   map[string]any{"type": "text", "analyzer": "note_analyzer"},
					"title":     map[string]any{"type": "text"},
					"keywords":  map[string]any{"type": "keyword"},
					"summary":   map[string]any{"type": "text"},
					"authors":   map[string]any{"type": "keyword"},
					"path":      map[string]any{"type": "text"},
					"embedding": map[string]any{"type": "dense_vector", "dims": dims},
				},
			},
		},
	}
}

// CreateIndex 删除同名索引（不存在时忽略）后按 schema 重新创建。重复调用结果一致。
func CreateIndex(ctx context.Context, client *elasticsearch.Client, schema Schema) error {
	res, err := client.Indices.Delete(
		[]string{schema.Index},
		client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: 删除索引 '%s': %w", ErrUnavailable, schema.Index, err)
	}
	drain(res.Body)
	switch {
	case !res.IsError():
		log.Infof("[Schema] 已删除旧索引 '%s'", schema.Index)
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusBadRequest:
		log.Debugf("[Schema] 索引 '%s' 不存在, 跳过删除", schema.Index)
	default:
		return fmt.Errorf("%w: 删除索引 '%s' 返回 %s", ErrSchema, schema.Index, res.Status())
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(schema.Body); err != nil {
		return fmt.Errorf("%w: 序列化索引结构失败: %w", ErrSchema, err)
	}
	res, err = client.Indices.Create(
		schema.Index,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(&buf),
	)
	if err != nil {
		return fmt.Errorf("%w: 创建索引 '%s': %w", ErrUnavailable, schema.Index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: 创建索引 '%s' 返回 %s: %s", ErrSchema, schema.Index, res.Status(), string(body))
	}

	log.Infof("[Schema] 索引 '%s' 创建成功", schema.Index)
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
