package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sort"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"note-search-go/internal/model"
	"note-search-go/pkg/log"
	"note-search-go/pkg/metrics"
)

// DefaultBatchSize 是每个 _bulk 请求携带的文档数上限。
const DefaultBatchSize = 500

// Rejection 描述一条被 _bulk 接口单独拒绝的文档。
type Rejection struct {
	Index  string `json:"index"`
	ID     string `json:"id,omitempty"`
	Status int    `json:"status"`
	Reason string `json:"reason"`
	Source any    `json:"source,omitempty"`
}

// RejectionReporter 接收被拒绝的文档。上报失败只记日志，不影响写入。
type RejectionReporter interface {
	Report(ctx context.Context, r Rejection) error
}

// LogReporter 把被拒绝的文档写到日志里，是默认的 RejectionReporter。
type LogReporter struct{}

// Report 实现 RejectionReporter。
func (LogReporter) Report(_ context.Context, r Rejection) error {
	log.Warnw("[BulkIndexer] 文档被拒绝", "index", r.Index, "id", r.ID, "status", r.Status, "reason", r.Reason)
	return nil
}

// UploadStats 汇总一次上传的结果。
type UploadStats struct {
	Indexed  int
	Rejected int
	Batches  int
}

// BulkIndexer 把记录流按批写入 Elasticsearch。
type BulkIndexer struct {
	client    *elasticsearch.Client
	batchSize int
	reporter  RejectionReporter
}

// BulkOption 用于定制 BulkIndexer。
type BulkOption func(*BulkIndexer)

// WithBatchSize 设置每批的文档数，n <= 0 时保持默认值。
func WithBatchSize(n int) BulkOption {
	return func(b *BulkIndexer) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithReporter 设置被拒文档的接收方。
func WithReporter(r RejectionReporter) BulkOption {
	return func(b *BulkIndexer) {
		if r != nil {
			b.reporter = r
		}
	}
}

// NewBulkIndexer 创建一个新的 BulkIndexer 实例。
func NewBulkIndexer(client *elasticsearch.Client, opts ...BulkOption) *BulkIndexer {
	b := &BulkIndexer{client: client, batchSize: DefaultBatchSize, reporter: LogReporter{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upload 消费记录流并分批写入。单条文档被拒绝时上报并计数；
// 记录流返回的错误、网络错误或整个请求失败都会立即终止上传。
// 全部写完后刷新涉及的索引，使文档立即可查。
func (b *BulkIndexer) Upload(ctx context.Context, records iter.Seq2[model.IndexRecord, error]) (UploadStats, error) {
	var stats UploadStats
	batch := make([]model.IndexRecord, 0, b.batchSize)
	touched := make(map[string]struct{})

	for rec, err := range records {
		if err != nil {
			log.Errorf("[BulkIndexer] 记录流中断, 已写入 %d 条: %v", stats.Indexed, err)
			return stats, err
		}
		batch = append(batch, rec)
		touched[rec.Index] = struct{}{}
		if len(batch) >= b.batchSize {
			if err := b.flush(ctx, batch, &stats); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := b.flush(ctx, batch, &stats); err != nil {
			return stats, err
		}
	}

	if err := b.refresh(ctx, touched); err != nil {
		return stats, err
	}
	log.Infof("[BulkIndexer] 上传完成, 成功: %d, 拒绝: %d, 批次: %d", stats.Indexed, stats.Rejected, stats.Batches)
	return stats, nil
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

type bulkItem struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

func (b *BulkIndexer) flush(ctx context.Context, batch []model.IndexRecord, stats *UploadStats) error {
	var body bytes.Buffer
	sent := make([]model.IndexRecord, 0, len(batch))
	enc := json.NewEncoder(&body)
	for _, rec := range batch {
		source, err := json.Marshal(rec.Source)
		if err != nil {
			b.reject(ctx, stats, Rejection{Index: rec.Index, ID: rec.ID, Reason: "序列化失败: " + err.Error()})
			continue
		}
		meta := map[string]string{"_index": rec.Index}
		if rec.ID != "" {
			meta["_id"] = rec.ID
		}
		if err := enc.Encode(map[string]any{"index": meta}); err != nil {
			return fmt.Errorf("序列化 bulk 元数据失败: %w", err)
		}
		body.Write(source)
		body.WriteByte('\n')
		sent = append(sent, rec)
	}
	if len(sent) == 0 {
		return nil
	}

	label := sent[0].Index
	start := time.Now()
	res, err := b.client.Bulk(
		&body,
		b.client.Bulk.WithContext(ctx),
	)
	metrics.BulkRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: bulk 请求失败: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: bulk 请求返回 %s: %s", ErrUnavailable, res.Status(), string(msg))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("%w: 解析 bulk 响应失败: %w", ErrUnavailable, err)
	}
	stats.Batches++

	for i, entry := range parsed.Items {
		for _, item := range entry {
			if item.Error == nil && item.Status < 300 {
				stats.Indexed++
				metrics.IndexedDocumentsTotal.WithLabelValues(item.Index, "indexed").Inc()
				continue
			}
			r := Rejection{Index: item.Index, ID: item.ID, Status: item.Status}
			if item.Error != nil {
				r.Reason = item.Error.Type + ": " + item.Error.Reason
			}
			if i < len(sent) {
				r.Source = sent[i].Source
			}
			b.reject(ctx, stats, r)
		}
	}
	log.Debugf("[BulkIndexer] 第 %d 批写入完成, 文档数: %d", stats.Batches, len(sent))
	return nil
}

func (b *BulkIndexer) reject(ctx context.Context, stats *UploadStats, r Rejection) {
	stats.Rejected++
	metrics.IndexedDocumentsTotal.WithLabelValues(r.Index, "rejected").Inc()
	if err := b.reporter.Report(ctx, r); err != nil {
		log.Warnf("[BulkIndexer] 上报被拒文档失败, id: %s, error: %v", r.ID, err)
	}
}

func (b *BulkIndexer) refresh(ctx context.Context, touched map[string]struct{}) error {
	if len(touched) == 0 {
		return nil
	}
	indices := make([]string, 0, len(touched))
	for index := range touched {
		indices = append(indices, index)
	}
	sort.Strings(indices)

	res, err := b.client.Indices.Refresh(
		b.client.Indices.Refresh.WithContext(ctx),
		b.client.Indices.Refresh.WithIndex(indices...),
	)
	if err != nil {
		return fmt.Errorf("%w: 刷新索引失败: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: 刷新索引返回 %s", ErrUnavailable, res.Status())
	}
	return nil
}
