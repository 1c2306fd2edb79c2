package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/reddit-ingest/internal/model"
)

func TestFor_KnownAndUnknown(t *testing.T) {
	s, ok := For("get_user_info")
	require.True(t, ok)
	assert.Equal(t, "get_user_info", s.Operation)

	_, ok = For("get_modmail")
	assert.False(t, ok)
}

func TestOperations_CoversRegistry(t *testing.T) {
	ops := Operations()
	assert.Len(t, ops, 8)
	assert.Contains(t, ops, "who_am_i")
	assert.Contains(t, ops, "get_submission_by_url")
}

func TestValidate_UserInfo(t *testing.T) {
	s, _ := For("get_user_info")

	err := s.Validate([]byte(`{
		"username": "spez",
		"created_utc": 1118030400.0,
		"comment_karma": 100,
		"link_karma": 200,
		"total_karma": 300,
		"is_mod": true
	}`))
	assert.NoError(t, err)

	// username missing entirely
	err = s.Validate([]byte(`{"comment_karma": 100}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func TestValidate_WrongType(t *testing.T) {
	s, _ := For("get_user_info")

	err := s.Validate([]byte(`{"username": "spez", "comment_karma": "lots"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comment_karma")
}

func TestValidate_NullableField(t *testing.T) {
	s, _ := For("get_user_info")

	err := s.Validate([]byte(`{
		"username": "ghost",
		"created_utc": 0.0,
		"comment_karma": 0,
		"link_karma": 0,
		"total_karma": 0,
		"suspension_expiration_utc": null
	}`))
	assert.NoError(t, err)
}

func TestValidate_NonObjectRoot(t *testing.T) {
	s, _ := For("get_user_info")
	assert.Error(t, s.Validate([]byte(`[1, 2, 3]`)))
	assert.Error(t, s.Validate([]byte(`not json`)))
}

func TestValidate_TopPosts(t *testing.T) {
	s, _ := For("get_top_posts")

	valid := []byte(`{
		"subreddit": "golang",
		"time_filter": "week",
		"posts": [{
			"id": "abc",
			"title": "Generics are here",
			"author": "gopher",
			"score": 321,
			"upvote_ratio": 0.97,
			"num_comments": 42,
			"created_utc": 1700000000.0,
			"is_self": true,
			"over_18": false,
			"spoiler": false
		}],
		"metadata": {"fetched_at": 1700000100.0, "post_count": 1}
	}`)
	assert.NoError(t, s.Validate(valid))

	// a post missing its required title fails
	invalid := []byte(`{
		"subreddit": "golang",
		"time_filter": "week",
		"posts": [{"id": "abc"}],
		"metadata": {"fetched_at": 1700000100.0, "post_count": 1}
	}`)
	assert.Error(t, s.Validate(invalid))
}

func TestDecompose_User(t *testing.T) {
	s, _ := For("get_user_info")
	set := s.Decompose(map[string]any{"username": "spez", "comment_karma": float64(100)})

	require.Len(t, set[model.KindUser], 1)
	assert.Equal(t, "spez", set[model.KindUser][0]["username"])
	assert.Empty(t, set[model.KindPost])
	assert.Empty(t, set[model.KindCommunity])
}

func TestDecompose_TopPosts(t *testing.T) {
	s, _ := For("get_top_posts")
	set := s.Decompose(map[string]any{
		"subreddit":   "golang",
		"time_filter": "week",
		"posts": []any{
			map[string]any{"id": "p1", "title": "one", "author": "alice"},
			map[string]any{"id": "p2", "title": "two", "author": "[deleted]"},
		},
	})

	require.Len(t, set[model.KindPost], 2)

	// container summary carries the parent name and the item count
	require.Len(t, set[model.KindCommunity], 1)
	summary := set[model.KindCommunity][0]
	assert.Equal(t, "golang", summary["name"])
	assert.Equal(t, "week", summary["time_filter"])
	assert.Equal(t, 2, summary["post_count"])

	// one author stub; the deleted author is skipped
	require.Len(t, set[model.KindUser], 1)
	assert.Equal(t, "alice", set[model.KindUser][0]["username"])
	assert.Equal(t, true, set[model.KindUser][0]["post_activity"])
}

func TestDecompose_Trending(t *testing.T) {
	s, _ := For("get_trending_subreddits")
	set := s.Decompose(map[string]any{
		"subreddits": []any{
			map[string]any{"display_name": "golang", "title": "Go", "subscribers": float64(200000)},
			map[string]any{"display_name": "rust", "title": "Rust", "subscribers": float64(150000)},
		},
	})

	require.Len(t, set[model.KindCommunity], 2)
	for _, c := range set[model.KindCommunity] {
		assert.Equal(t, true, c["is_trending"])
	}
	assert.Empty(t, set[model.KindUser])
}

func TestDecompose_Submission(t *testing.T) {
	s, _ := For("get_submission_by_id")
	set := s.Decompose(map[string]any{
		"id":        "s1",
		"title":     "Show Reddit",
		"author":    "bob",
		"subreddit": "programming",
	})

	require.Len(t, set[model.KindSubmission], 1)

	require.Len(t, set[model.KindUser], 1)
	assert.Equal(t, "bob", set[model.KindUser][0]["username"])
	assert.Equal(t, true, set[model.KindUser][0]["submission_activity"])

	require.Len(t, set[model.KindCommunity], 1)
	assert.Equal(t, "programming", set[model.KindCommunity][0]["name"])
}

func TestDecompose_Submission_RemovedAuthor(t *testing.T) {
	s, _ := For("get_submission_by_id")
	set := s.Decompose(map[string]any{
		"id":        "s2",
		"title":     "gone",
		"author":    "[removed]",
		"subreddit": "programming",
	})

	assert.Empty(t, set[model.KindUser])
	require.Len(t, set[model.KindSubmission], 1)
}
