package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/reddit-ingest/internal/ingest"
	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/query"
	"github.com/driftline/reddit-ingest/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	h := NewHandler(ingest.New(st), query.NewReader(st))
	srv := httptest.NewServer(NewRouter(h, RouterConfig{IngestRPS: 100, IngestBurst: 100}))
	t.Cleanup(srv.Close)
	return srv, st
}

func postIngest(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/ingest", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Ingest(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postIngest(t, srv, `{
		"operation": "get_user_info",
		"response": {
			"username": "spez",
			"created_utc": 1118030400.0,
			"comment_karma": 100,
			"link_karma": 200,
			"total_karma": 300
		},
		"metadata": {"request_id": "r-1"}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	outcome := decodeBody[model.BatchOutcome](t, resp)
	assert.Equal(t, model.BatchCompleted, outcome.Status)
	assert.Equal(t, 1, outcome.TotalEntities)
	require.NotEmpty(t, outcome.BatchID)

	b, err := st.GetBatch(context.Background(), outcome.BatchID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, model.BatchCompleted, b.Status)
}

func TestAPI_Ingest_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postIngest(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = postIngest(t, srv, `{"response": {"x": 1}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = postIngest(t, srv, `{"operation": "get_user_info"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func TestAPI_BatchEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postIngest(t, srv, `{
		"operation": "get_user_info",
		"response": {
			"username": "spez",
			"created_utc": 1118030400.0,
			"comment_karma": 100,
			"link_karma": 200,
			"total_karma": 300
		}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outcome := decodeBody[model.BatchOutcome](t, resp)

	// list
	listResp, err := http.Get(srv.URL + "/api/v1/batches")
	require.NoError(t, err)
	batches := decodeBody[[]model.Batch](t, listResp)
	require.Len(t, batches, 1)
	assert.Equal(t, outcome.BatchID, batches[0].BatchID)

	// show
	getResp, err := http.Get(srv.URL + "/api/v1/batches/" + outcome.BatchID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	b := decodeBody[model.Batch](t, getResp)
	assert.Equal(t, "get_user_info", b.OperationName)

	// entities
	entResp, err := http.Get(srv.URL + "/api/v1/batches/" + outcome.BatchID + "/entities")
	require.NoError(t, err)
	set := decodeBody[model.EntitySet](t, entResp)
	require.Len(t, set[model.KindUser], 1)
	assert.Equal(t, "spez", set[model.KindUser][0]["username"])
}

func TestAPI_GetBatch_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/batches/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp, err = http.Get(srv.URL + "/api/v1/batches/nope/entities")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func TestAPI_Recent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postIngest(t, srv, `{
		"operation": "get_user_info",
		"response": {
			"username": "spez",
			"created_utc": 1118030400.0,
			"comment_karma": 100,
			"link_karma": 200,
			"total_karma": 300
		}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	recentResp, err := http.Get(srv.URL + "/api/v1/recent?kind=users&limit=5")
	require.NoError(t, err)
	set := decodeBody[model.EntitySet](t, recentResp)
	require.Len(t, set[model.KindUser], 1)

	badResp, err := http.Get(srv.URL + "/api/v1/recent?kind=gadgets")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
	badResp.Body.Close() //nolint:errcheck
}

func TestAPI_Stats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	stats := decodeBody[model.StoreStats](t, resp)
	assert.Equal(t, int64(0), stats.Batches)
}

func TestAPI_IngestRateLimit(t *testing.T) {
	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	h := NewHandler(ingest.New(st), query.NewReader(st))
	srv := httptest.NewServer(NewRouter(h, RouterConfig{IngestRPS: 1, IngestBurst: 1}))
	t.Cleanup(srv.Close)

	first := postIngest(t, srv, `{"operation": "x", "response": {}}`)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	first.Body.Close() //nolint:errcheck

	second := postIngest(t, srv, `{"operation": "x", "response": {}}`)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	second.Body.Close() //nolint:errcheck
}
