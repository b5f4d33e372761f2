package storage

import (
	"context"
	"testing"
	"time"

	"github.com/maltedev/outlet-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemorySink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := NewSQLiteSink(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink(t)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	capture := &Capture{
		Run: models.Run{
			ID:         "run-1",
			Target:     "https://example.com/outlet",
			Extractor:  "dell-outlet",
			Charset:    "utf-8",
			StartedAt:  started,
			FinishedAt: started.Add(3 * time.Second),
		},
		Records: []models.Record{
			{Price: "¥59,800", Specifications: "Inspiron 15 3000 Core i3", Memory: "4GB"},
			{Price: "¥89,800", Specifications: "XPS 13 Core i7", HDD: "512GB SSD", Others: "Wi-Fi"},
		},
		Screenshot: []byte{1, 2, 3},
	}
	require.NoError(t, sink.Save(ctx, capture))

	records, err := sink.Records(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, capture.Records, records)

	run, err := sink.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/outlet", run.Target)
	assert.Equal(t, "dell-outlet", run.Extractor)
	assert.Equal(t, 2, run.RecordCount)
	assert.True(t, started.Equal(run.StartedAt))
	assert.True(t, capture.Run.FinishedAt.Equal(run.FinishedAt))
}

func TestSQLiteSinkEmptyRun(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink(t)

	require.NoError(t, sink.Save(ctx, &Capture{Run: models.Run{ID: "empty", Target: "file:///x.html"}}))

	records, err := sink.Records(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSQLiteSinkDuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink(t)

	capture := &Capture{
		Run:     models.Run{ID: "dup", Target: "t"},
		Records: []models.Record{{Price: "¥1"}},
	}
	require.NoError(t, sink.Save(ctx, capture))

	err := sink.Save(ctx, capture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert run dup")

	records, err := sink.Records(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteSinkUnknownRun(t *testing.T) {
	_, err := newMemorySink(t).Run(context.Background(), "missing")
	assert.Error(t, err)
}
