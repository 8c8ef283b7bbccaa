// Package service 提供了查询相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"note-search-go/internal/config"
	"note-search-go/internal/model"
	"note-search-go/pkg/es"
	"note-search-go/pkg/log"
	"note-search-go/pkg/metrics"
)

// SearchService 接口定义了检索与分面统计操作。index 为空时查询全部默认索引，多个索引用逗号分隔。
type SearchService interface {
	Search(ctx context.Context, phrase, index string) ([]model.SearchResult, error)
	Facets(ctx context.Context, phrase, index string) ([]model.FacetGroup, error)
}

type searchService struct {
	esClient       *elasticsearch.Client
	topK           int
	facetFields    []string
	facetSize      int
	defaultIndices []string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esClient *elasticsearch.Client, cfg config.SearchConfig, defaultIndices ...string) SearchService {
	s := &searchService{
		esClient:       esClient,
		topK:           cfg.TopK,
		facetFields:    cfg.FacetFields,
		facetSize:      cfg.FacetSize,
		defaultIndices: defaultIndices,
	}
	if s.topK <= 0 {
		s.topK = 10
	}
	if s.facetSize <= 0 {
		s.facetSize = 10
	}
	return s
}

func textQuery(phrase string) map[string]interface{} {
	return map[string]interface{}{
		"simple_query_string": map[string]interface{}{
			"query":  phrase,
			"fields": []string{"content"},
		},
	}
}

// Search 在 content 字段上执行 simple_query_string 检索，保留搜索引擎给出的顺序，最多返回 topK 条。
func (s *searchService) Search(ctx context.Context, phrase, index string) ([]model.SearchResult, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return []model.SearchResult{}, nil
	}
	log.Infof("[SearchService] 开始检索, query: '%s', index: '%s', topK: %d", phrase, index, s.topK)

	esQuery := map[string]interface{}{
		"query": textQuery(phrase),
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"content": map[string]interface{}{},
			},
		},
		"_source": map[string]interface{}{
			"excludes": []string{"content", "embedding"},
		},
		"size": s.topK,
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Index     string              `json:"_index"`
				ID        string              `json:"_id"`
				Score     float64             `json:"_score"`
				Source    model.SourceFields  `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := s.do(ctx, "search", index, esQuery, &esResponse); err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		if len(results) == s.topK {
			break
		}
		highlights := hit.Highlight["content"]
		if highlights == nil {
			highlights = []string{}
		}
		results = append(results, model.SearchResult{
			Score:      hit.Score,
			Index:      hit.Index,
			ID:         hit.ID,
			Source:     hit.Source,
			Highlights: highlights,
		})
	}
	log.Infof("[SearchService] 检索完成, 返回 %d 条结果", len(results))
	return results, nil
}

// Facets 用相同的文本查询统计各分面字段的取值分布，桶的顺序与搜索引擎一致。
func (s *searchService) Facets(ctx context.Context, phrase, index string) ([]model.FacetGroup, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" || len(s.facetFields) == 0 {
		return []model.FacetGroup{}, nil
	}

	aggs := make(map[string]interface{}, len(s.facetFields))
	for _, field := range s.facetFields {
		aggs[field] = map[string]interface{}{
			"terms": map[string]interface{}{"field": field, "size": s.facetSize},
		}
	}
	esQuery := map[string]interface{}{
		"query": textQuery(phrase),
		"aggs":  aggs,
		"size":  0,
	}

	var esResponse struct {
		Aggregations map[string]struct {
			Buckets []struct {
				Key      any   `json:"key"`
				DocCount int64 `json:"doc_count"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, "facets", index, esQuery, &esResponse); err != nil {
		return nil, err
	}

	groups := make([]model.FacetGroup, 0, len(s.facetFields))
	for _, field := range s.facetFields {
		group := model.FacetGroup{Field: field, Counts: []model.FacetCount{}}
		for _, b := range esResponse.Aggregations[field].Buckets {
			group.Counts = append(group.Counts, model.FacetCount{Term: fmt.Sprint(b.Key), Count: b.DocCount})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// do 发送查询并解码响应。未指定索引时查询全部默认索引，尚未建立的索引被忽略。
// 网络错误与 5xx 包装为 es.ErrUnavailable，显式指定的索引不存在时返回 es.ErrIndexNotFound。
func (s *searchService) do(ctx context.Context, kind, index string, query map[string]interface{}, out interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("failed to encode es query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithBody(&buf),
	}
	if index != "" {
		opts = append(opts, s.esClient.Search.WithIndex(strings.Split(index, ",")...))
	} else {
		opts = append(opts,
			s.esClient.Search.WithIndex(s.defaultIndices...),
			s.esClient.Search.WithIgnoreUnavailable(true),
			s.esClient.Search.WithAllowNoIndices(true),
		)
	}
	res, err := s.esClient.Search(opts...)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "error").Inc()
		log.Errorf("[SearchService] 向 Elasticsearch 发送请求失败: %v", err)
		return fmt.Errorf("%w: %w", es.ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
		switch {
		case res.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", es.ErrIndexNotFound, index)
		case res.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: 查询返回 %s", es.ErrUnavailable, res.Status())
		}
		return fmt.Errorf("查询被拒绝: %s", res.Status())
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to decode es response: %w", err)
	}
	metrics.SearchRequestsTotal.WithLabelValues(kind, "ok").Inc()
	return nil
}
