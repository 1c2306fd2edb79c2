package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/reddit-ingest/internal/model"
)

func TestParseMeta(t *testing.T) {
	meta, err := parseMeta([]string{"request_id=r-1", "source=backfill"})
	require.NoError(t, err)
	assert.Equal(t, model.CallMetadata{"request_id": "r-1", "source": "backfill"}, meta)
}

func TestParseMeta_Empty(t *testing.T) {
	meta, err := parseMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestParseMeta_Invalid(t *testing.T) {
	_, err := parseMeta([]string{"no-equals"})
	assert.Error(t, err)

	_, err = parseMeta([]string{"=value"})
	assert.Error(t, err)
}

func TestParseMeta_ValueWithEquals(t *testing.T) {
	meta, err := parseMeta([]string{"query=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", meta["query"])
}

func TestMetaWithSource(t *testing.T) {
	meta := metaWithSource(model.CallMetadata{"k": "v"}, "/data/responses/batch1.json")
	assert.Equal(t, "batch1.json", meta["source_file"])
	assert.Equal(t, "v", meta["k"])

	// caller keys win over the injected one
	meta = metaWithSource(model.CallMetadata{"source_file": "explicit"}, "/data/x.json")
	assert.Equal(t, "explicit", meta["source_file"])
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abcdef"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatBatchList(t *testing.T) {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(250 * time.Millisecond)

	var buf bytes.Buffer
	formatBatchList(&buf, []model.Batch{
		{
			BatchID:        "aaaabbbbccccdddd",
			OperationName:  "get_top_posts",
			Status:         model.BatchCompleted,
			EntitiesStored: 3,
			StartedAt:      started,
			CompletedAt:    &completed,
		},
		{
			BatchID:       "eeeeffff00001111",
			OperationName: "get_user_info",
			Status:        model.BatchProcessing,
			StartedAt:     started,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "aaaabbbb")
	assert.Contains(t, out, "get_top_posts")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "250ms")
	// in-flight batch has no duration
	assert.Contains(t, out, "processing")
}

func TestFormatStats(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, &model.StoreStats{
		Batches: 2,
		EntityCounts: map[model.EntityKind]int64{
			model.KindPost: 5,
			model.KindUser: 1,
		},
		Captured:  1,
		SizeBytes: 4096,
	})

	out := buf.String()
	assert.Contains(t, out, "batches")
	assert.Contains(t, out, "posts")
	assert.Contains(t, out, "4096")
}
