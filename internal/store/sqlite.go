package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/driftline/reddit-ingest/internal/model"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id TEXT PRIMARY KEY,
	operation_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'processing',
	total_entities INTEGER NOT NULL DEFAULT 0,
	entities_stored INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	call_metadata TEXT,
	started_at TEXT NOT NULL,
	completed_at TEXT,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_batches_operation_name ON batches(operation_name);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);

CREATE TABLE IF NOT EXISTS captured (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT NOT NULL REFERENCES batches(batch_id),
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	source_operation TEXT,
	extracted_at TEXT,
	call_metadata TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_captured_batch_id ON captured(batch_id);
CREATE INDEX IF NOT EXISTS idx_captured_kind ON captured(kind);
`

// SQLiteStore is the embedded single-file store. It is the default
// backend and requires no external services.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path and applies
// the schema. WAL mode keeps concurrent readers from blocking the writer.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	zap.L().Debug("opened sqlite store", zap.String("path", path))
	return s, nil
}

// Migrate applies the schema. All statements are idempotent, so running
// it against an existing database is safe.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate ledger")
	}
	for _, kind := range model.Kinds {
		if _, err := s.db.ExecContext(ctx, createEntityTableSQL(kind, dialectSQLite)); err != nil {
			return eris.Wrapf(err, "sqlite: migrate %s", kind)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateBatch opens a new ledger row in the processing state and returns
// its generated identifier.
func (s *SQLiteStore) CreateBatch(ctx context.Context, operation string, callMeta model.CallMetadata) (string, error) {
	batchID := uuid.NewString()
	metaJSON, err := marshalMeta(callMeta)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: encode call metadata")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (batch_id, operation_name, status, call_metadata, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		batchID, operation, string(model.BatchProcessing), metaJSON,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create batch")
	}
	return batchID, nil
}

// FinalizeBatch moves a batch to a terminal status and records its
// counters. The stored count doubles as the entity total: entities the
// batch produced but failed to store are the errors counter.
func (s *SQLiteStore) FinalizeBatch(ctx context.Context, batchID string, status model.BatchStatus, stored, errCount int, errorMessage string) error {
	if !status.Terminal() {
		return eris.Errorf("sqlite: finalize batch %s: status %q is not terminal", batchID, status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE batches
		SET status = ?, total_entities = ?, entities_stored = ?, errors = ?,
		    completed_at = ?, error_message = ?
		WHERE batch_id = ?`,
		string(status), stored, stored, errCount,
		time.Now().UTC().Format(time.RFC3339), nullString(errorMessage), batchID)
	if err != nil {
		return eris.Wrap(err, "sqlite: finalize batch")
	}
	return checkRowsAffected(res, "batch", batchID)
}

// GetBatch returns the ledger row for batchID, or nil if no such batch
// exists.
func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT batch_id, operation_name, status, total_entities, entities_stored,
		       errors, call_metadata, started_at, completed_at, error_message
		FROM batches WHERE batch_id = ?`, batchID)

	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get batch")
	}
	return b, nil
}

// ListBatches returns ledger rows newest first, optionally filtered by
// status and operation.
func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	q := strings.Builder{}
	q.WriteString(`
		SELECT batch_id, operation_name, status, total_entities, entities_stored,
		       errors, call_metadata, started_at, completed_at, error_message
		FROM batches`)
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Operation != "" {
		conds = append(conds, "operation_name = ?")
		args = append(args, filter.Operation)
	}
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	q.WriteString(" ORDER BY started_at DESC, batch_id DESC")
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	q.WriteString(" LIMIT ?")
	args = append(args, limit)
	if filter.Offset > 0 {
		q.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var out []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list batches")
}

// InsertEntity stores one entity in its kind's table. Capture kinds go
// to the captured table with the original payload kept whole.
func (s *SQLiteStore) InsertEntity(ctx context.Context, kind model.EntityKind, entity model.Entity, batchID, operation string, callMeta model.CallMetadata) error {
	if !kind.Valid() && !kind.IsCapture() {
		return eris.Errorf("sqlite: unknown entity kind %q", kind)
	}
	metaJSON, err := marshalMeta(callMeta)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode call metadata")
	}
	extractedAt := time.Now().UTC().Format(time.RFC3339)

	if kind.IsCapture() {
		payload, err := json.Marshal(entity)
		if err != nil {
			return eris.Wrapf(err, "sqlite: encode %s payload", kind)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO captured (batch_id, kind, payload, source_operation, extracted_at, call_metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			batchID, string(kind), string(payload), operation, extractedAt, metaJSON)
		return eris.Wrapf(err, "sqlite: insert %s", kind)
	}

	vals, err := entityValues(kind, entity)
	if err != nil {
		return eris.Wrapf(err, "sqlite: map %s entity", kind)
	}
	args := make([]any, 0, len(vals)+4)
	args = append(args, batchID)
	for _, v := range vals {
		// JSON blobs go in as TEXT, not BLOB.
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		args = append(args, v)
	}
	args = append(args, operation, extractedAt, metaJSON)

	_, err = s.db.ExecContext(ctx, insertEntitySQL(kind, dialectSQLite), args...)
	return eris.Wrapf(err, "sqlite: insert %s", kind)
}

// GetBatchEntities returns every entity stored for a batch, grouped by
// kind in insertion order. Captured payloads are included under their
// capture kind.
func (s *SQLiteStore) GetBatchEntities(ctx context.Context, batchID string) (model.EntitySet, error) {
	set := model.NewEntitySet()
	for _, kind := range model.Kinds {
		q := fmt.Sprintf("SELECT %s FROM %s WHERE batch_id = ? ORDER BY id",
			selectEntityColumns(kind), tableName(kind))
		ents, err := s.queryEntities(ctx, kind, q, batchID)
		if err != nil {
			return nil, err
		}
		set[kind] = ents
	}

	captured, err := s.queryCaptured(ctx,
		"SELECT kind, payload FROM captured WHERE batch_id = ? ORDER BY id", batchID)
	if err != nil {
		return nil, err
	}
	for kind, ents := range captured {
		set[kind] = append(set[kind], ents...)
	}
	return set, nil
}

// Recent returns the newest entities, either for one kind or across all
// core kinds when kind is empty.
func (s *SQLiteStore) Recent(ctx context.Context, kind model.EntityKind, limit int) (model.EntitySet, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	kinds := model.Kinds
	if kind != "" {
		if !kind.Valid() && !kind.IsCapture() {
			return nil, eris.Errorf("sqlite: unknown entity kind %q", kind)
		}
		kinds = []model.EntityKind{kind}
	}

	set := model.EntitySet{}
	for _, k := range kinds {
		if k.IsCapture() {
			captured, err := s.queryCaptured(ctx,
				"SELECT kind, payload FROM captured WHERE kind = ? ORDER BY id DESC LIMIT ?",
				string(k), limit)
			if err != nil {
				return nil, err
			}
			set[k] = captured[k]
			if set[k] == nil {
				set[k] = []model.Entity{}
			}
			continue
		}
		q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id DESC LIMIT ?",
			selectEntityColumns(k), tableName(k))
		ents, err := s.queryEntities(ctx, k, q, limit)
		if err != nil {
			return nil, err
		}
		set[k] = ents
	}
	return set, nil
}

// Stats reports row counts and the database file size.
func (s *SQLiteStore) Stats(ctx context.Context) (*model.StoreStats, error) {
	stats := &model.StoreStats{EntityCounts: map[model.EntityKind]int64{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM batches").Scan(&stats.Batches); err != nil {
		return nil, eris.Wrap(err, "sqlite: count batches")
	}
	for _, kind := range model.Kinds {
		var n int64
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(kind))
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", kind)
		}
		stats.EntityCounts[kind] = n
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM captured").Scan(&stats.Captured); err != nil {
		return nil, eris.Wrap(err, "sqlite: count captured")
	}
	err := s.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").
		Scan(&stats.SizeBytes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: database size")
	}
	return stats, nil
}

func (s *SQLiteStore) queryEntities(ctx context.Context, kind model.EntityKind, query string, args ...any) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", kind)
	}
	defer rows.Close()

	n := len(entityColumns[kind]) + 4
	ents := []model.Entity{}
	for rows.Next() {
		raw := make([]any, n)
		ptrs := make([]any, n)
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", kind)
		}
		e, err := decodeEntityRow(kind, raw)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode %s", kind)
		}
		ents = append(ents, e)
	}
	return ents, eris.Wrapf(rows.Err(), "sqlite: query %s", kind)
}

func (s *SQLiteStore) queryCaptured(ctx context.Context, query string, args ...any) (map[model.EntityKind][]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query captured")
	}
	defer rows.Close()

	out := map[model.EntityKind][]model.Entity{}
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan captured")
		}
		var e model.Entity
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode captured payload")
		}
		k := model.EntityKind(kind)
		out[k] = append(out[k], e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query captured")
}

// scannable lets scanBatch work for both QueryRow and Query results.
type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*model.Batch, error) {
	var b model.Batch
	var metaJSON, completedAt, errorMessage sql.NullString
	var startedAt string
	var status string

	err := row.Scan(&b.BatchID, &b.OperationName, &status, &b.TotalEntities,
		&b.EntitiesStored, &b.Errors, &metaJSON, &startedAt, &completedAt, &errorMessage)
	if err != nil {
		return nil, err
	}
	b.Status = model.BatchStatus(status)
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &b.CallMetadata); err != nil {
			return nil, eris.Wrap(err, "decode call metadata")
		}
	}
	if b.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, eris.Wrap(err, "parse started_at")
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, eris.Wrap(err, "parse completed_at")
		}
		b.CompletedAt = &t
	}
	b.ErrorMessage = errorMessage.String
	return &b, nil
}

func checkRowsAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s %s not found", what, id)
	}
	return nil
}

func marshalMeta(meta model.CallMetadata) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
