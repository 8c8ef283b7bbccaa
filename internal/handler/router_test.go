package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-search-go/internal/model"
	"note-search-go/internal/pipeline"
	"note-search-go/pkg/es"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSearchService struct {
	err       error
	lastIndex string
}

func (s *stubSearchService) Search(_ context.Context, phrase, index string) ([]model.SearchResult, error) {
	s.lastIndex = index
	if s.err != nil {
		return nil, s.err
	}
	return []model.SearchResult{{Score: 1.5, Index: "notes", ID: "n1", Source: model.SourceFields{Name: phrase}, Highlights: []string{}}}, nil
}

func (s *stubSearchService) Facets(context.Context, string, string) ([]model.FacetGroup, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []model.FacetGroup{{Field: "keywords", Counts: []model.FacetCount{{Term: "graph", Count: 2}}}}, nil
}

type stubRunService struct{}

func (stubRunService) Start(command, index, source string) *model.IngestRun {
	return &model.IngestRun{Command: command, IndexName: index, Source: source}
}

func (stubRunService) Finish(*model.IngestRun, pipeline.Stats, es.UploadStats, error) {}

func (stubRunService) Recent(index string, limit int) ([]model.IngestRun, error) {
	return []model.IngestRun{{ID: 7, Command: "upload", IndexName: index, Status: model.RunOK}}, nil
}

func get(t *testing.T, r http.Handler, url string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	var body map[string]any
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestSearch(t *testing.T) {
	svc := &stubSearchService{}
	w, body := get(t, NewRouter(svc, stubRunService{}), "/api/v1/search?query=graph&index=notes")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "notes", svc.lastIndex)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "graph", data[0].(map[string]any)["source"].(map[string]any)["name"])
}

func TestSearch_MissingQuery(t *testing.T) {
	w, _ := get(t, NewRouter(&stubSearchService{}, stubRunService{}), "/api/v1/search?query=%20")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_EngineUnavailable(t *testing.T) {
	svc := &stubSearchService{err: fmt.Errorf("%w: connection refused", es.ErrUnavailable)}
	w, _ := get(t, NewRouter(svc, stubRunService{}), "/api/v1/search?query=graph")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSearch_IndexNotFound(t *testing.T) {
	svc := &stubSearchService{err: fmt.Errorf("%w: articles", es.ErrIndexNotFound)}
	w, _ := get(t, NewRouter(svc, stubRunService{}), "/api/v1/search?query=graph&index=articles")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFacets(t *testing.T) {
	w, body := get(t, NewRouter(&stubSearchService{}, stubRunService{}), "/api/v1/facets?query=graph")

	require.Equal(t, http.StatusOK, w.Code)
	group := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "keywords", group["field"])
}

func TestRuns(t *testing.T) {
	w, body := get(t, NewRouter(&stubSearchService{}, stubRunService{}), "/api/v1/runs?index=articles&limit=abc")

	require.Equal(t, http.StatusOK, w.Code)
	run := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "articles", run["index"])
	assert.EqualValues(t, 7, run["id"])
}

func TestHealthAndMetrics(t *testing.T) {
	r := NewRouter(&stubSearchService{}, stubRunService{})

	w, _ := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
