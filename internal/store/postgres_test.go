package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/reddit-ingest/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_CreateBatch(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO batches").
		WithArgs(pgxmock.AnyArg(), "get_user_info", "processing", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := st.CreateBatch(context.Background(), "get_user_info", model.CallMetadata{"k": "v"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinalizeBatch(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE batches SET").
		WithArgs("completed", 3, 3, 0, pgxmock.AnyArg(), nil, "batch-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.FinalizeBatch(context.Background(), "batch-1", model.BatchCompleted, 3, 0, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinalizeBatch_NotFound(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE batches SET").
		WithArgs("failed", 0, 0, 1, pgxmock.AnyArg(), "boom", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.FinalizeBatch(context.Background(), "missing", model.BatchFailed, 0, 1, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPostgres_GetBatch(t *testing.T) {
	st, mock := newMockPostgres(t)

	started := time.Now().UTC()
	completed := started.Add(time.Second)
	rows := pgxmock.NewRows([]string{
		"batch_id", "operation_name", "status", "total_entities", "entities_stored",
		"errors", "call_metadata", "started_at", "completed_at", "error_message",
	}).AddRow("batch-1", "get_top_posts", "completed", 5, 5, 0,
		[]byte(`{"request_id":"r-1"}`), started, &completed, (*string)(nil))

	mock.ExpectQuery("SELECT (.+) FROM batches WHERE batch_id").
		WithArgs("batch-1").
		WillReturnRows(rows)

	b, err := st.GetBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, model.BatchCompleted, b.Status)
	assert.Equal(t, 5, b.EntitiesStored)
	assert.Equal(t, "r-1", b.CallMetadata["request_id"])
	require.NotNil(t, b.CompletedAt)
}

func TestPostgres_GetBatch_Missing(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT (.+) FROM batches WHERE batch_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	b, err := st.GetBatch(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestPostgres_InsertEntity_Captured(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO captured").
		WithArgs("batch-1", "unknown", pgxmock.AnyArg(), "get_wiki", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.InsertEntity(context.Background(), model.KindUnknown,
		model.Entity{"weird": "payload"}, "batch-1", "get_wiki", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertEntity_Comment(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO comments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.InsertEntity(context.Background(), model.KindComment,
		model.Entity{"id": "c1", "author": "alice", "score": float64(2)},
		"batch-1", "get_top_posts", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertEntity_MissingRequiredField(t *testing.T) {
	st, _ := newMockPostgres(t)

	err := st.InsertEntity(context.Background(), model.KindPost,
		model.Entity{"title": "no id"}, "batch-1", "get_top_posts", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}
