// Package es 提供了与 Elasticsearch 交互的客户端功能：索引结构的重建与批量写入。
package es

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"note-search-go/internal/config"
)

var (
	// ErrUnavailable 表示 Elasticsearch 不可达，或整个请求被拒绝。
	ErrUnavailable = errors.New("elasticsearch unavailable")
	// ErrSchema 表示索引的删除或创建失败。
	ErrSchema = errors.New("elasticsearch schema error")
	// ErrIndexNotFound 表示显式指定的索引不存在。
	ErrIndexNotFound = errors.New("index not found")
)

// NewClient 根据配置创建 Elasticsearch 客户端。每条命令各自创建，不在进程内共享。
// 网络错误不重试，直接作为致命错误返回。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses:    esCfg.Addresses,
		Username:     esCfg.Username,
		Password:     esCfg.Password,
		DisableRetry: true,
	}
	if esCfg.Insecure {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return client, nil
}
