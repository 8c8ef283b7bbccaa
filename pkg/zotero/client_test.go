package zotero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-search-go/internal/config"
)

func testConfig(baseURL string) config.ZoteroConfig {
	return config.ZoteroConfig{
		BaseURL:     baseURL,
		LibraryID:   "42",
		LibraryType: "user",
		APIKey:      "secret",
		ItemType:    "journalArticle",
		PageSize:    2,
	}
}

func TestClient_ItemsPages(t *testing.T) {
	all := []map[string]any{
		{"key": "A", "data": map[string]any{"title": "Graphs", "abstractNote": "About graphs.", "creators": []map[string]any{{"firstName": "Ada", "lastName": "Lovelace"}}}},
		{"key": "B", "data": map[string]any{"title": "Trees", "abstractNote": "", "creators": []map[string]any{{"name": "ACM"}}}},
		{"key": "C", "data": map[string]any{"title": "Ranks", "abstractNote": "About ranks."}},
	}
	var starts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42/items", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Zotero-API-Key"))
		assert.Equal(t, "journalArticle", r.URL.Query().Get("itemType"))
		starts = append(starts, r.URL.Query().Get("start"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		end := min(start+2, len(all))
		w.Header().Set("Total-Results", strconv.Itoa(len(all)))
		_ = json.NewEncoder(w).Encode(all[start:end])
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), server.Client())
	require.NoError(t, err)

	var items []Item
	for item, err := range client.Items(context.Background()) {
		require.NoError(t, err)
		items = append(items, item)
	}

	require.Len(t, items, 3)
	assert.Equal(t, []string{"0", "2"}, starts)
	assert.Equal(t, []string{"Ada Lovelace"}, items[0].Authors)
	assert.Equal(t, []string{"ACM"}, items[1].Authors)
	assert.Empty(t, items[1].Abstract)
	assert.Equal(t, "C", items[2].Key)
}

func TestClient_ItemsStopsEarly(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Total-Results", "100")
		_ = json.NewEncoder(w).Encode([]map[string]any{{"key": "A"}, {"key": "B"}})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	require.NoError(t, err)
	for range client.Items(context.Background()) {
		break
	}
	assert.Equal(t, 1, calls)
}

func TestClient_ErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	require.NoError(t, err)

	var errs []error
	for _, err := range client.Items(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnavailable)
	assert.Contains(t, errs[0].Error(), "403")
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	cfg := testConfig("http://example.invalid")
	cfg.APIKey = ""
	_, err := NewClient(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
