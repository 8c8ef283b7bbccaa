package es

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-search-go/internal/model"
	"note-search-go/pkg/es/estest"
)

func records(n int, failAt int, failErr error) iter.Seq2[model.IndexRecord, error] {
	return func(yield func(model.IndexRecord, error) bool) {
		for i := 0; i < n; i++ {
			if i == failAt {
				yield(model.IndexRecord{}, failErr)
				return
			}
			rec := model.IndexRecord{
				Index:  "notes",
				ID:     fmt.Sprintf("doc-%d", i),
				Source: model.NoteDocument{Name: fmt.Sprintf("note %d", i), Content: "graph ranking"},
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

type captureReporter struct {
	got []Rejection
	err error
}

func (c *captureReporter) Report(_ context.Context, r Rejection) error {
	c.got = append(c.got, r)
	return c.err
}

func TestBulkIndexer_UploadInBatches(t *testing.T) {
	server := estest.NewServer(t)
	server.CreateIndex("notes")

	indexer := NewBulkIndexer(server.Client(t), WithBatchSize(2))
	stats, err := indexer.Upload(context.Background(), records(5, -1, nil))
	require.NoError(t, err)

	assert.Equal(t, UploadStats{Indexed: 5, Batches: 3}, stats)
	assert.Len(t, server.Docs("notes"), 5)
	assert.Contains(t, server.Requests(), "POST /notes/_refresh")
}

func TestBulkIndexer_RejectionIsReportedAndCounted(t *testing.T) {
	server := estest.NewServer(t)
	server.RejectID("doc-1", "failed to parse field [keywords]")
	reporter := &captureReporter{err: errors.New("reporter down")}

	stats, err := NewBulkIndexer(server.Client(t), WithReporter(reporter)).
		Upload(context.Background(), records(3, -1, nil))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 1, stats.Rejected)
	require.Len(t, reporter.got, 1)
	assert.Equal(t, "doc-1", reporter.got[0].ID)
	assert.Equal(t, 400, reporter.got[0].Status)
	assert.Contains(t, reporter.got[0].Reason, "failed to parse")
	assert.NotNil(t, reporter.got[0].Source)
}

func TestBulkIndexer_StreamErrorAborts(t *testing.T) {
	server := estest.NewServer(t)
	sourceErr := errors.New("zotero unreachable")

	stats, err := NewBulkIndexer(server.Client(t), WithBatchSize(2)).
		Upload(context.Background(), records(5, 3, sourceErr))
	require.ErrorIs(t, err, sourceErr)

	// 前两条已成批写入，第三条留在缓冲区里不再提交
	assert.Equal(t, 2, stats.Indexed)
	assert.Len(t, server.Docs("notes"), 2)
	assert.NotContains(t, server.Requests(), "POST /notes/_refresh")
}

func TestBulkIndexer_RequestFailureIsFatal(t *testing.T) {
	server := estest.NewServer(t)
	server.FailPath("POST /_bulk", http.StatusServiceUnavailable)

	_, err := NewBulkIndexer(server.Client(t)).Upload(context.Background(), records(2, -1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBulkIndexer_Unreachable(t *testing.T) {
	server := estest.NewServer(t)
	client := server.Client(t)
	server.Close()

	_, err := NewBulkIndexer(client).Upload(context.Background(), records(1, -1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBulkIndexer_EmptyStream(t *testing.T) {
	server := estest.NewServer(t)

	stats, err := NewBulkIndexer(server.Client(t)).Upload(context.Background(), records(0, -1, nil))
	require.NoError(t, err)
	assert.Zero(t, stats)
	assert.Empty(t, server.Requests())
}
