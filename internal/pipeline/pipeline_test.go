package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-search-go/internal/config"
	"note-search-go/internal/model"
	"note-search-go/pkg/zotero"
)

type stubTagger struct {
	failOn string
}

func (s stubTagger) Extract(text string) (model.TagResult, error) {
	if s.failOn != "" && strings.Contains(text, s.failOn) {
		return model.TagResult{}, errors.New("ranker exploded")
	}
	words := strings.Fields(text)
	return model.TagResult{Keywords: words[:1], Summary: []string{text}}, nil
}

type stubEmbedder struct {
	inputs []string
	err    error
}

func (s *stubEmbedder) Extract(_ context.Context, text string) (model.EmbeddingResult, error) {
	s.inputs = append(s.inputs, text)
	if s.err != nil {
		return model.EmbeddingResult{}, s.err
	}
	return model.EmbeddingResult{Embedding: []float32{0.5, 0.5}, Model: "stub"}, nil
}

func textItem(p, text string) Item {
	return Item{
		Path: p,
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(text)), nil
		},
	}
}

func brokenItem(p string) Item {
	return Item{
		Path: p,
		Open: func(context.Context) (io.ReadCloser, error) {
			return nil, errors.New("permission denied")
		},
	}
}

func fromSlice(items []Item, pulled *int) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for _, it := range items {
			if pulled != nil {
				*pulled++
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}

func collect(t *testing.T, seq iter.Seq2[model.IndexRecord, error]) ([]model.IndexRecord, error) {
	t.Helper()
	var out []model.IndexRecord
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func newNotesPipeline(t *testing.T, tagger Tagger) *Pipeline {
	t.Helper()
	p, err := New(config.SchemaNotes, "notes", NewRoutingExtractor(nil), tagger)
	require.NoError(t, err)
	return p
}

func TestProcess_FailingItemIsSkipped(t *testing.T) {
	items := []Item{
		textItem("notes/one.txt", "first note"),
		textItem("notes/two.txt", "second note"),
		brokenItem("notes/three.txt"),
		textItem("notes/four.txt", "fourth note"),
		textItem("notes/five.txt", "fifth note"),
	}
	p := newNotesPipeline(t, stubTagger{})

	records, err := collect(t, p.Process(context.Background(), fromSlice(items, nil)))
	require.NoError(t, err)
	require.Len(t, records, 4)

	var names []string
	for _, rec := range records {
		names = append(names, rec.Source.(model.NoteDocument).Name)
	}
	assert.Equal(t, []string{"one", "two", "four", "five"}, names)
	assert.Equal(t, Stats{Produced: 4, Failed: 1}, p.Stats())
}

func TestProcess_EmptyAndTaggingFailuresAreSkipped(t *testing.T) {
	items := []Item{
		textItem("a.txt", "  \n\t "),
		textItem("b.txt", "poison pill"),
		textItem("c.txt", "fine content"),
	}
	p := newNotesPipeline(t, stubTagger{failOn: "poison"})

	records, err := collect(t, p.Process(context.Background(), fromSlice(items, nil)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Stats{Produced: 1, Empty: 1, Failed: 1}, p.Stats())
}

func TestProcess_NoteRecord(t *testing.T) {
	item := textItem("library/Graph Theory/On Ranking, v2.txt", "graph ranking")
	item.Topic = "Graph Theory"
	p := newNotesPipeline(t, stubTagger{})

	records, err := collect(t, p.Process(context.Background(), fromSlice([]Item{item}, nil)))
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "notes", rec.Index)
	assert.Len(t, rec.ID, 40)
	doc := rec.Source.(model.NoteDocument)
	assert.Equal(t, "on ranking v2", doc.Name)
	assert.Equal(t, "Graph Theory", doc.Topic)
	assert.Equal(t, item.Path, doc.Path)
	assert.Equal(t, "graph ranking", doc.Content)
	assert.Equal(t, []string{"graph"}, doc.Keywords)
}

func TestProcess_IsLazy(t *testing.T) {
	items := []Item{textItem("a.txt", "one"), textItem("b.txt", "two"), textItem("c.txt", "three")}
	pulled := 0
	p := newNotesPipeline(t, stubTagger{})

	for _, err := range p.Process(context.Background(), fromSlice(items, &pulled)) {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, 1, pulled)
}

func TestProcess_SourceErrorEndsSequence(t *testing.T) {
	sourceErr := fmt.Errorf("%w: connection refused", zotero.ErrUnavailable)
	items := func(yield func(Item, error) bool) {
		if !yield(textItem("a.txt", "one"), nil) {
			return
		}
		yield(Item{}, sourceErr)
	}
	p := newNotesPipeline(t, stubTagger{})

	records, err := collect(t, p.Process(context.Background(), items))
	require.ErrorIs(t, err, zotero.ErrUnavailable)
	assert.Len(t, records, 1)
}

func TestProcess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newNotesPipeline(t, stubTagger{})

	_, err := collect(t, p.Process(ctx, fromSlice([]Item{textItem("a.txt", "one")}, nil)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcess_ArticleRecordEmbedsSummary(t *testing.T) {
	embedder := &stubEmbedder{}
	p, err := New(config.SchemaArticles, "articles", nil, stubTagger{}, WithEmbedder(embedder))
	require.NoError(t, err)

	items := []Item{{Key: "ABCD1234", Title: "Graphs", Authors: []string{"Ada Lovelace"}, Text: "abstract text"}}
	records, err := collect(t, p.Process(context.Background(), fromSlice(items, nil)))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "ABCD1234", records[0].ID)
	doc := records[0].Source.(model.ArticleDocument)
	assert.Equal(t, "Graphs", doc.Title)
	assert.Equal(t, []string{"Ada Lovelace"}, doc.Authors)
	assert.Equal(t, "abstract text", doc.Content)
	assert.Equal(t, []float32{0.5, 0.5}, doc.Embedding)
	assert.Equal(t, []string{"abstract text"}, embedder.inputs)
}

func TestProcess_EmbeddingFailureIsSkipped(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("model offline")}
	p, err := New(config.SchemaArticles, "articles", nil, stubTagger{}, WithEmbedder(embedder))
	require.NoError(t, err)

	items := []Item{{Key: "A", Title: "t", Text: "one"}, {Key: "B", Title: "t", Text: "two"}}
	records, err := collect(t, p.Process(context.Background(), fromSlice(items, nil)))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 2, p.Stats().Failed)
}

func TestNew_UnknownSchema(t *testing.T) {
	_, err := New("books", "books", nil, stubTagger{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "mynotes", NoteName("/tmp/My-Notes.pdf"))
	assert.Equal(t, "chapter 1 intro", NoteName("books/Chapter 1: Intro.txt"))
	assert.Equal(t, "readme", NoteName("README"))
}

type recordingExtractor struct {
	names []string
}

func (r *recordingExtractor) ExtractText(_ context.Context, rd io.Reader, name string) (string, error) {
	r.names = append(r.names, name)
	data, _ := io.ReadAll(rd)
	return "tika:" + string(data), nil
}

func TestRoutingExtractor(t *testing.T) {
	fallback := &recordingExtractor{}
	router := NewRoutingExtractor(fallback)

	text, err := router.ExtractText(context.Background(), strings.NewReader("plain"), "note.MD")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	text, err = router.ExtractText(context.Background(), strings.NewReader("pdf"), "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "tika:pdf", text)
	assert.Equal(t, []string{"paper.pdf"}, fallback.names)

	_, err = NewRoutingExtractor(nil).ExtractText(context.Background(), strings.NewReader("x"), "paper.pdf")
	require.Error(t, err)
}

func TestFolderSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "physics"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "physics", "waves.md"), []byte("waves"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.txt"), []byte("index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "photo.png"), []byte("png"), 0o644))

	var items []Item
	for item, err := range FolderSource(root) {
		require.NoError(t, err)
		items = append(items, item)
	}
	require.Len(t, items, 2)
	assert.Equal(t, filepath.Join(root, "index.txt"), items[0].Path)
	assert.Equal(t, "physics", items[1].Topic)

	rc, err := items[1].Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "waves", string(data))
}

func TestFolderSource_SingleFileAndMissingRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "one.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	var n int
	for _, err := range FolderSource(file) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)

	var errs []error
	for _, err := range FolderSource(filepath.Join(t.TempDir(), "missing")) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestFolderSource_UnreadableSubdirectoryIsSkipped(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "locked"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "locked", "secret.md"), []byte("secret note"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "open.md"), []byte("open note"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "zeta.txt"), []byte("zeta note"), 0o644))

	original := walkDir
	t.Cleanup(func() { walkDir = original })
	walkDir = func(dir string, fn fs.WalkDirFunc) error {
		return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() && d.Name() == "locked" {
				return fn(p, d, fs.ErrPermission)
			}
			return fn(p, d, err)
		})
	}

	p := newNotesPipeline(t, stubTagger{})
	records, err := collect(t, p.Process(context.Background(), FolderSource(root)))
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotContains(t, rec.Source.(model.NoteDocument).Path, "locked")
	}
	assert.Equal(t, Stats{Produced: 2, Failed: 1}, p.Stats())
}

type stubLister struct {
	items []zotero.Item
	err   error
}

func (s stubLister) Items(context.Context) iter.Seq2[zotero.Item, error] {
	return func(yield func(zotero.Item, error) bool) {
		for _, it := range s.items {
			if !yield(it, nil) {
				return
			}
		}
		if s.err != nil {
			yield(zotero.Item{}, s.err)
		}
	}
}

func TestZoteroSource_SkipsIncompleteItems(t *testing.T) {
	lister := stubLister{items: []zotero.Item{
		{Key: "A", Title: "Graphs", Abstract: "About graphs."},
		{Key: "B", Title: "", Abstract: "No title."},
		{Key: "C", Title: "No abstract"},
		{Key: "D", Title: "Trees", Abstract: "About trees.", Authors: []string{"Ada Lovelace"}},
	}, err: zotero.ErrUnavailable}

	var keys []string
	var last error
	for item, err := range ZoteroSource(context.Background(), lister) {
		if err != nil {
			last = err
			break
		}
		keys = append(keys, item.Key)
		assert.Nil(t, item.Open)
	}
	assert.Equal(t, []string{"A", "D"}, keys)
	assert.ErrorIs(t, last, zotero.ErrUnavailable)
}
