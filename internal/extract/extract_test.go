package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/reddit-ingest/internal/model"
)

const validUser = `{
	"username": "spez",
	"created_utc": 1118030400.0,
	"comment_karma": 100,
	"link_karma": 200,
	"total_karma": 300
}`

func TestExtract_ValidResponse(t *testing.T) {
	set := Extract([]byte(validUser), "get_user_info", nil)

	// every core kind is present even when empty
	for _, kind := range model.Kinds {
		_, ok := set[kind]
		assert.True(t, ok, "kind %s missing", kind)
	}
	require.Len(t, set[model.KindUser], 1)
	assert.Equal(t, "spez", set[model.KindUser][0]["username"])
	assert.Empty(t, set[model.KindPost])
}

func TestExtract_UnknownOperation(t *testing.T) {
	raw := []byte(`{"something": "else"}`)
	set := Extract(raw, "get_modqueue", nil)

	// only the unknown bucket, nothing else
	require.Len(t, set, 1)
	require.Len(t, set[model.KindUnknown], 1)
	assert.Equal(t, "else", set[model.KindUnknown][0]["something"])
}

func TestExtract_UnknownOperation_NonObjectPayload(t *testing.T) {
	set := Extract([]byte(`[1, 2]`), "get_modqueue", nil)

	require.Len(t, set[model.KindUnknown], 1)
	_, ok := set[model.KindUnknown][0]["data"]
	assert.True(t, ok)
}

func TestExtract_ValidationError_PreservesPayload(t *testing.T) {
	raw := []byte(`{"username": "spez", "comment_karma": "lots"}`)
	set := Extract(raw, "get_user_info", nil)

	require.Len(t, set[model.KindValidationError], 1)
	ve := set[model.KindValidationError][0]

	errMsg, ok := ve["error"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, errMsg)

	// original payload survives byte-for-byte
	data, ok := ve["data"].(json.RawMessage)
	require.True(t, ok)
	assert.Equal(t, raw, []byte(data))

	assert.Empty(t, set[model.KindUser])
}

func TestExtract_MetadataStamp(t *testing.T) {
	meta := model.CallMetadata{"request_id": "r-1"}
	set := Extract([]byte(validUser), "get_user_info", meta)

	require.Len(t, set[model.KindUser], 1)
	stamp, ok := set[model.KindUser][0][model.ExtractionMetadataKey].(model.ExtractionMetadata)
	require.True(t, ok)
	assert.Equal(t, "get_user_info", stamp.OperationName)
	assert.Equal(t, meta, stamp.CallMetadata)
	assert.False(t, stamp.ExtractedAt.IsZero())
}

func TestExtract_MetadataStamp_OnCapturePaths(t *testing.T) {
	meta := model.CallMetadata{"request_id": "r-2"}

	set := Extract([]byte(`{"x": 1}`), "no_such_op", meta)
	require.Len(t, set[model.KindUnknown], 1)
	_, ok := set[model.KindUnknown][0][model.ExtractionMetadataKey]
	assert.True(t, ok)

	set = Extract([]byte(`{"bad": true}`), "get_user_info", meta)
	require.Len(t, set[model.KindValidationError], 1)
	_, ok = set[model.KindValidationError][0][model.ExtractionMetadataKey]
	assert.True(t, ok)
}

func TestExtract_NoStampWithoutMetadata(t *testing.T) {
	set := Extract([]byte(validUser), "get_user_info", nil)
	require.Len(t, set[model.KindUser], 1)
	_, ok := set[model.KindUser][0][model.ExtractionMetadataKey]
	assert.False(t, ok)
}

func TestExtract_TopPosts_EmitsStubs(t *testing.T) {
	raw := []byte(`{
		"subreddit": "golang",
		"time_filter": "day",
		"posts": [{
			"id": "p1",
			"title": "hello",
			"author": "alice",
			"score": 1,
			"upvote_ratio": 1.0,
			"num_comments": 0,
			"created_utc": 1700000000.0,
			"is_self": true,
			"over_18": false,
			"spoiler": false
		}],
		"metadata": {"fetched_at": 1700000100.0, "post_count": 1}
	}`)
	set := Extract(raw, "get_top_posts", nil)

	assert.Len(t, set[model.KindPost], 1)
	assert.Len(t, set[model.KindUser], 1)
	assert.Len(t, set[model.KindCommunity], 1)
	assert.Equal(t, 3, set.Total())
}
