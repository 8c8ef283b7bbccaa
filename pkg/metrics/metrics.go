// Package metrics 定义了流水线与查询的 Prometheus 指标。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notesearch"

var (
	// PipelineItemsTotal 按结果统计流水线处理过的条目：produced / skipped_empty / failed_extract / failed_enrich。
	PipelineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_items_total",
			Help:      "Source items processed by the extraction pipeline",
		},
		[]string{"index", "result"},
	)

	// IndexedDocumentsTotal 按结果统计写入索引的文档：indexed / rejected。
	IndexedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_documents_total",
			Help:      "Documents sent to the bulk API",
		},
		[]string{"index", "result"},
	)

	// BulkRequestDuration 记录每个 _bulk 请求的耗时。
	BulkRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_request_duration_seconds",
			Help:      "Bulk request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"index"},
	)

	// SearchRequestsTotal 统计查询次数：kind 为 search / facets。
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Queries sent to the search engine",
		},
		[]string{"kind", "status"},
	)

	// EmbeddingRequestsTotal 统计向量接口调用次数。
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"status"},
	)

	// EmbeddingCacheTotal 统计向量缓存命中情况。
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register 把全部指标注册到默认 Registry，重复调用无副作用。
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PipelineItemsTotal,
			IndexedDocumentsTotal,
			BulkRequestDuration,
			SearchRequestsTotal,
			EmbeddingRequestsTotal,
			EmbeddingCacheTotal,
		)
	})
}
