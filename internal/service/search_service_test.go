package service

import (
	"context"
	"iter"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-search-go/internal/config"
	"note-search-go/internal/model"
	"note-search-go/pkg/es"
	"note-search-go/pkg/es/estest"
)

func searchConfig() config.SearchConfig {
	return config.SearchConfig{TopK: 2, FacetFields: []string{"keywords", "authors"}, FacetSize: 5}
}

func TestSearch_RoundTripThroughBulkIndexer(t *testing.T) {
	server := estest.NewServer(t)
	client := server.Client(t)
	ctx := context.Background()

	require.NoError(t, es.CreateIndex(ctx, client, es.NotesSchema("notes")))
	records := iter.Seq2[model.IndexRecord, error](func(yield func(model.IndexRecord, error) bool) {
		yield(model.IndexRecord{
			Index: "notes",
			ID:    "n1",
			Source: model.NoteDocument{
				Name:     "graph notes",
				Path:     "/notes/graph-notes.txt",
				Keywords: []string{"pagerank"},
				Summary:  []string{"Ranking uses a graph."},
				Content:  "Ranking uses a graph. Nothing else here",
			},
		}, nil)
	})
	_, err := es.NewBulkIndexer(client).Upload(ctx, records)
	require.NoError(t, err)

	results, err := NewSearchService(client, searchConfig(), "notes").Search(ctx, "graph", "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "notes", got.Index)
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, "graph notes", got.Source.Name)
	assert.Equal(t, "/notes/graph-notes.txt", got.Source.Path)
	assert.Equal(t, []string{"pagerank"}, got.Source.Keywords)
	assert.Equal(t, []string{"Ranking uses a <em>graph</em>"}, got.Highlights)
}

func TestSearch_RequestBody(t *testing.T) {
	server := estest.NewServer(t)
	server.CreateIndex("notes")

	_, err := NewSearchService(server.Client(t), searchConfig(), "notes").Search(context.Background(), "graph ranking", "notes")
	require.NoError(t, err)

	body := server.LastSearch()
	require.NotNil(t, body)
	sqs := body["query"].(map[string]any)["simple_query_string"].(map[string]any)
	assert.Equal(t, "graph ranking", sqs["query"])
	assert.Equal(t, []any{"content"}, sqs["fields"])
	assert.Contains(t, body["highlight"].(map[string]any)["fields"], "content")
	assert.EqualValues(t, 2, body["size"])
	assert.Contains(t, server.Requests(), "POST /notes/_search")
}

func TestSearch_PreservesEngineOrderAndTruncates(t *testing.T) {
	server := estest.NewServer(t)
	server.AddDoc("notes", "low", map[string]any{"name": "low", "content": "graph"})
	server.AddDoc("notes", "high", map[string]any{"name": "high", "content": "graph graph graph"})
	server.AddDoc("notes", "mid", map[string]any{"name": "mid", "content": "graph graph"})

	results, err := NewSearchService(server.Client(t), searchConfig(), "notes").Search(context.Background(), "graph", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].ID)
	assert.Equal(t, "mid", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_MultipleIndices(t *testing.T) {
	server := estest.NewServer(t)
	server.AddDoc("notes", "n", map[string]any{"name": "note", "content": "graph"})
	server.AddDoc("articles", "a", map[string]any{"title": "Article", "content": "graph"})

	results, err := NewSearchService(server.Client(t), searchConfig(), "notes", "articles").Search(context.Background(), "graph", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "note", results[0].Source.DisplayName())
	assert.Equal(t, "Article", results[1].Source.DisplayName())
}

func TestSearch_DefaultIndicesSkipMissingIndex(t *testing.T) {
	server := estest.NewServer(t)
	server.AddDoc("notes", "n", map[string]any{"name": "note", "content": "graph", "keywords": []any{"graph"}})
	svc := NewSearchService(server.Client(t), searchConfig(), "notes", "articles")

	results, err := svc.Search(context.Background(), "graph", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "note", results[0].Source.DisplayName())

	groups, err := svc.Facets(context.Background(), "graph", "")
	require.NoError(t, err)
	require.NotEmpty(t, groups)
	assert.Equal(t, "graph", groups[0].Counts[0].Term)
}

func TestSearch_ExplicitMissingIndex(t *testing.T) {
	server := estest.NewServer(t)
	server.AddDoc("notes", "n", map[string]any{"name": "note", "content": "graph"})

	_, err := NewSearchService(server.Client(t), searchConfig(), "notes").Search(context.Background(), "graph", "articles")
	require.ErrorIs(t, err, es.ErrIndexNotFound)
	assert.NotErrorIs(t, err, es.ErrUnavailable)
}

func TestSearch_EmptyPhrase(t *testing.T) {
	server := estest.NewServer(t)

	results, err := NewSearchService(server.Client(t), searchConfig(), "notes").Search(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, server.Requests())
}

func TestSearch_EngineErrorIsFatal(t *testing.T) {
	server := estest.NewServer(t)
	server.FailPath("POST /notes/_search", http.StatusInternalServerError)

	_, err := NewSearchService(server.Client(t), searchConfig(), "notes").Search(context.Background(), "graph", "")
	require.ErrorIs(t, err, es.ErrUnavailable)
}

func TestFacets(t *testing.T) {
	server := estest.NewServer(t)
	server.AddDoc("articles", "1", map[string]any{"content": "graph", "keywords": []any{"pagerank", "graphs"}, "authors": []any{"Ada Lovelace"}})
	server.AddDoc("articles", "2", map[string]any{"content": "graph", "keywords": []any{"graphs"}, "authors": []any{"Alan Turing", "Ada Lovelace"}})
	server.AddDoc("articles", "3", map[string]any{"content": "unrelated", "keywords": []any{"pottery"}})

	groups, err := NewSearchService(server.Client(t), searchConfig(), "articles").Facets(context.Background(), "graph", "")
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, model.FacetGroup{Field: "keywords", Counts: []model.FacetCount{{Term: "graphs", Count: 2}, {Term: "pagerank", Count: 1}}}, groups[0])
	assert.Equal(t, model.FacetGroup{Field: "authors", Counts: []model.FacetCount{{Term: "Ada Lovelace", Count: 2}, {Term: "Alan Turing", Count: 1}}}, groups[1])

	body := server.LastSearch()
	assert.EqualValues(t, 0, body["size"])
	terms := body["aggs"].(map[string]any)["authors"].(map[string]any)["terms"].(map[string]any)
	assert.Equal(t, "authors", terms["field"])
	assert.EqualValues(t, 5, terms["size"])
}
