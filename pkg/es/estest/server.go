// Package estest 提供一个内存版的 Elasticsearch 假服务，供各包的测试使用。
// 只实现本项目用到的接口：索引删除/创建、_bulk、_refresh、_search（simple_query_string、高亮、terms 聚合）。
package estest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"
)

// Doc 是假服务中存储的一篇文档。
type Doc struct {
	ID     string
	Source map[string]any
}

// Server 是内存版 Elasticsearch。
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	indices  map[string]map[string]any
	docs     map[string][]Doc
	reject   map[string]string
	fail     map[string]int
	requests []string
	searches [][]byte
	nextID   int
}

// NewServer 启动假服务，测试结束时自动关闭。
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		indices: make(map[string]map[string]any),
		docs:    make(map[string][]Doc),
		reject:  make(map[string]string),
		fail:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Client 返回一个指向假服务的客户端。
func (s *Server) Client(t *testing.T) *elasticsearch.Client {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{s.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)
	return client
}

// RejectID 让 _bulk 单独拒绝指定 ID 的文档。
func (s *Server) RejectID(id, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject[id] = reason
}

// FailPath 让匹配 "METHOD /path" 的请求返回给定状态码。
func (s *Server) FailPath(methodAndPath string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[methodAndPath] = status
}

// CreateIndex 直接建好一个空索引。
func (s *Server) CreateIndex(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices[name] = map[string]any{}
}

// AddDoc 直接写入一篇文档，索引不存在时自动创建。
func (s *Server) AddDoc(index, id string, source map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indices[index]; !ok {
		s.indices[index] = map[string]any{}
	}
	s.docs[index] = append(s.docs[index], Doc{ID: id, Source: source})
}

// Docs 返回某个索引中的全部文档。
func (s *Server) Docs(index string) []Doc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Doc(nil), s.docs[index]...)
}

// Mapping 返回创建索引时提交的请求体，索引不存在时返回 nil。
func (s *Server) Mapping(index string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indices[index]
}

// Requests 返回按顺序记录的 "METHOD /path"。
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// LastSearch 返回最近一次 _search 的请求体。
func (s *Server) LastSearch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.searches) == 0 {
		return nil
	}
	var body map[string]any
	_ = json.Unmarshal(s.searches[len(s.searches)-1], &body)
	return body
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, key)
	if status, ok := s.fail[key]; ok {
		writeJSON(w, status, map[string]any{"error": map[string]any{"type": "injected", "reason": "injected failure"}, "status": status})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		writeJSON(w, http.StatusOK, map[string]any{
			"name":         "estest",
			"cluster_name": "estest",
			"version":      map[string]any{"number": "8.19.0", "build_flavor": "default"},
			"tagline":      "You Know, for Search",
		})
	case parts[0] == "_bulk":
		s.bulk(w, body)
	case parts[len(parts)-1] == "_refresh":
		writeJSON(w, http.StatusOK, map[string]any{"_shards": map[string]any{"total": 1, "successful": 1, "failed": 0}})
	case len(parts) == 2 && parts[1] == "_search":
		s.searches = append(s.searches, body)
		s.search(w, strings.Split(parts[0], ","), body, r.URL.Query().Get("ignore_unavailable") == "true")
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if _, ok := s.indices[parts[0]]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "index_not_found_exception"}, "status": 404})
			return
		}
		delete(s.indices, parts[0])
		delete(s.docs, parts[0])
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	case len(parts) == 1 && r.Method == http.MethodPut:
		if _, ok := s.indices[parts[0]]; ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "resource_already_exists_exception"}, "status": 400})
			return
		}
		mapping := map[string]any{}
		_ = json.Unmarshal(body, &mapping)
		s.indices[parts[0]] = mapping
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "index": parts[0]})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unsupported " + key})
	}
}

func (s *Server) bulk(w http.ResponseWriter, body []byte) {
	var items []map[string]any
	hasErrors := false
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var action map[string]map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed action"})
			return
		}
		meta := action["index"]
		if !scanner.Scan() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing source"})
			return
		}
		var source map[string]any
		_ = json.Unmarshal(scanner.Bytes(), &source)

		index, id := meta["_index"], meta["_id"]
		if id == "" {
			s.nextID++
			id = fmt.Sprintf("auto-%d", s.nextID)
		}
		if reason, ok := s.reject[id]; ok {
			hasErrors = true
			items = append(items, map[string]any{"index": map[string]any{
				"_index": index, "_id": id, "status": 400,
				"error": map[string]any{"type": "mapper_parsing_exception", "reason": reason},
			}})
			continue
		}
		if _, ok := s.indices[index]; !ok {
			s.indices[index] = map[string]any{}
		}
		s.docs[index] = append(s.docs[index], Doc{ID: id, Source: source})
		items = append(items, map[string]any{"index": map[string]any{
			"_index": index, "_id": id, "status": 201, "result": "created",
		}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

type searchRequest struct {
	Size  *int `json:"size"`
	Query struct {
		SimpleQueryString struct {
			Query  string   `json:"query"`
			Fields []string `json:"fields"`
		} `json:"simple_query_string"`
	} `json:"query"`
	Aggs map[string]struct {
		Terms struct {
			Field string `json:"field"`
			Size  int    `json:"size"`
		} `json:"terms"`
	} `json:"aggs"`
}

type hit struct {
	index string
	doc   Doc
	score float64
	hl    []string
}

func (s *Server) search(w http.ResponseWriter, indices []string, body []byte, ignoreUnavailable bool) {
	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed query"})
		return
	}
	terms := strings.Fields(strings.ToLower(req.Query.SimpleQueryString.Query))

	var hits []hit
	for _, index := range indices {
		if _, ok := s.indices[index]; !ok {
			if ignoreUnavailable {
				continue
			}
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "index_not_found_exception"}, "status": 404})
			return
		}
		for _, doc := range s.docs[index] {
			content, _ := doc.Source["content"].(string)
			score, hl := match(content, terms)
			if score > 0 {
				hits = append(hits, hit{index: index, doc: doc, score: score, hl: hl})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	size := 10
	if req.Size != nil {
		size = *req.Size
	}
	out := make([]map[string]any, 0, len(hits))
	for i, h := range hits {
		if i >= size {
			break
		}
		source := make(map[string]any, len(h.doc.Source))
		for k, v := range h.doc.Source {
			if k == "content" || k == "embedding" {
				continue
			}
			source[k] = v
		}
		entry := map[string]any{"_index": h.index, "_id": h.doc.ID, "_score": h.score, "_source": source}
		if len(h.hl) > 0 {
			entry["highlight"] = map[string]any{"content": h.hl}
		}
		out = append(out, entry)
	}

	resp := map[string]any{
		"took": 1,
		"hits": map[string]any{
			"total":     map[string]any{"value": len(hits), "relation": "eq"},
			"max_score": nil,
			"hits":      out,
		},
	}
	if len(req.Aggs) > 0 {
		aggs := map[string]any{}
		for name, agg := range req.Aggs {
			aggs[name] = map[string]any{"buckets": buckets(hits, agg.Terms.Field, agg.Terms.Size)}
		}
		resp["aggregations"] = aggs
	}
	writeJSON(w, http.StatusOK, resp)
}

// match 对 content 做大小写不敏感的词匹配，得分为命中的次数。
func match(content string, terms []string) (float64, []string) {
	var score float64
	var highlights []string
	for _, sentence := range strings.Split(content, ".") {
		words := strings.Fields(sentence)
		marked := false
		for i, word := range words {
			for _, term := range terms {
				if strings.EqualFold(strings.Trim(word, ",;:!?\"'()"), term) {
					score++
					words[i] = "<em>" + word + "</em>"
					marked = true
					break
				}
			}
		}
		if marked {
			highlights = append(highlights, strings.Join(words, " "))
		}
	}
	return score, highlights
}

func buckets(hits []hit, field string, size int) []map[string]any {
	if size <= 0 {
		size = 10
	}
	counts := map[string]int{}
	for _, h := range hits {
		switch v := h.doc.Source[field].(type) {
		case []any:
			for _, item := range v {
				counts[fmt.Sprint(item)]++
			}
		case nil:
		default:
			counts[fmt.Sprint(v)]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make([]map[string]any, 0, size)
	for i, k := range keys {
		if i >= size {
			break
		}
		out = append(out, map[string]any{"key": k, "doc_count": counts[k]})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
