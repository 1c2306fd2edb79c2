package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/driftline/reddit-ingest/internal/db"
	"github.com/driftline/reddit-ingest/internal/model"
)

// PostgresStore implements Store using pgxpool. It is the backend for
// multi-writer deployments where the embedded store's single writer
// becomes a bottleneck.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	qInsertBatch    = `INSERT INTO batches (batch_id, operation_name, status, call_metadata, started_at) VALUES ($1, $2, $3, $4, $5)`
	qFinalizeBatch  = `UPDATE batches SET status = $1, total_entities = $2, entities_stored = $3, errors = $4, completed_at = $5, error_message = $6 WHERE batch_id = $7`
	qGetBatch       = `SELECT batch_id, operation_name, status, total_entities, entities_stored, errors, call_metadata, started_at, completed_at, error_message FROM batches WHERE batch_id = $1`
	qInsertCaptured = `INSERT INTO captured (batch_id, kind, payload, source_operation, extracted_at, call_metadata) VALUES ($1, $2, $3, $4, $5, $6)`
)

// preparedStatements lists the hottest queries to prepare on each new
// connection.
var preparedStatements = map[string]string{
	"insert_batch":    qInsertBatch,
	"finalize_batch":  qFinalizeBatch,
	"get_batch":       qGetBatch,
	"insert_captured": qInsertCaptured,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := &PostgresStore{pool: pool, closeFn: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromPool wraps an existing pool without migrating. Used by
// tests with a mock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresLedgerMigration = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id       TEXT PRIMARY KEY,
	operation_name TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'processing',
	total_entities  INTEGER NOT NULL DEFAULT 0,
	entities_stored INTEGER NOT NULL DEFAULT 0,
	errors         INTEGER NOT NULL DEFAULT 0,
	call_metadata  JSONB,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ,
	error_message  TEXT
);
CREATE INDEX IF NOT EXISTS idx_batches_operation_name ON batches(operation_name);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);

CREATE TABLE IF NOT EXISTS captured (
	id               BIGSERIAL PRIMARY KEY,
	batch_id         TEXT NOT NULL REFERENCES batches(batch_id),
	kind             TEXT NOT NULL,
	payload          JSONB NOT NULL,
	source_operation TEXT,
	extracted_at     TEXT,
	call_metadata    JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_captured_batch_id ON captured(batch_id);
CREATE INDEX IF NOT EXISTS idx_captured_kind ON captured(kind);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresLedgerMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate ledger")
	}
	for _, kind := range model.Kinds {
		if _, err := s.pool.Exec(ctx, createEntityTableSQL(kind, dialectPostgres)); err != nil {
			return eris.Wrapf(err, "postgres: migrate %s", kind)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, operation string, callMeta model.CallMetadata) (string, error) {
	batchID := uuid.NewString()
	metaJSON, err := marshalMeta(callMeta)
	if err != nil {
		return "", eris.Wrap(err, "postgres: encode call metadata")
	}

	_, err = s.pool.Exec(ctx, qInsertBatch,
		batchID, operation, string(model.BatchProcessing), metaJSON, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "postgres: create batch")
	}
	return batchID, nil
}

func (s *PostgresStore) FinalizeBatch(ctx context.Context, batchID string, status model.BatchStatus, stored, errCount int, errorMessage string) error {
	if !status.Terminal() {
		return eris.Errorf("postgres: finalize batch %s: status %q is not terminal", batchID, status)
	}

	tag, err := s.pool.Exec(ctx, qFinalizeBatch,
		string(status), stored, stored, errCount,
		time.Now().UTC(), nullString(errorMessage), batchID)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize batch %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch %s not found", batchID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	b, err := scanPgBatch(s.pool.QueryRow(ctx, qGetBatch, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}
	return b, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT batch_id, operation_name, status, total_entities, entities_stored, errors, call_metadata, started_at, completed_at, error_message FROM batches`)
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		conds = append(conds, fmt.Sprintf("operation_name = $%d", len(args)))
	}
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	q.WriteString(" ORDER BY started_at DESC, batch_id DESC")
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&q, " LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&q, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []model.Batch
	for rows.Next() {
		b, err := scanPgBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list batches")
}

func (s *PostgresStore) InsertEntity(ctx context.Context, kind model.EntityKind, entity model.Entity, batchID, operation string, callMeta model.CallMetadata) error {
	if !kind.Valid() && !kind.IsCapture() {
		return eris.Errorf("postgres: unknown entity kind %q", kind)
	}
	metaJSON, err := marshalMeta(callMeta)
	if err != nil {
		return eris.Wrap(err, "postgres: encode call metadata")
	}
	extractedAt := time.Now().UTC().Format(time.RFC3339)

	if kind.IsCapture() {
		payload, err := json.Marshal(entity)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode %s payload", kind)
		}
		_, err = s.pool.Exec(ctx, qInsertCaptured,
			batchID, string(kind), payload, operation, extractedAt, metaJSON)
		return eris.Wrapf(err, "postgres: insert %s", kind)
	}

	vals, err := entityValues(kind, entity)
	if err != nil {
		return eris.Wrapf(err, "postgres: map %s entity", kind)
	}
	args := make([]any, 0, len(vals)+4)
	args = append(args, batchID)
	args = append(args, vals...)
	args = append(args, operation, extractedAt, metaJSON)

	_, err = s.pool.Exec(ctx, insertEntitySQL(kind, dialectPostgres), args...)
	return eris.Wrapf(err, "postgres: insert %s", kind)
}

func (s *PostgresStore) GetBatchEntities(ctx context.Context, batchID string) (model.EntitySet, error) {
	set := model.NewEntitySet()
	for _, kind := range model.Kinds {
		q := fmt.Sprintf("SELECT %s FROM %s WHERE batch_id = $1 ORDER BY id",
			selectEntityColumns(kind), tableName(kind))
		ents, err := s.queryEntities(ctx, kind, q, batchID)
		if err != nil {
			return nil, err
		}
		set[kind] = ents
	}

	captured, err := s.queryCaptured(ctx,
		"SELECT kind, payload FROM captured WHERE batch_id = $1 ORDER BY id", batchID)
	if err != nil {
		return nil, err
	}
	for kind, ents := range captured {
		set[kind] = append(set[kind], ents...)
	}
	return set, nil
}

func (s *PostgresStore) Recent(ctx context.Context, kind model.EntityKind, limit int) (model.EntitySet, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	kinds := model.Kinds
	if kind != "" {
		if !kind.Valid() && !kind.IsCapture() {
			return nil, eris.Errorf("postgres: unknown entity kind %q", kind)
		}
		kinds = []model.EntityKind{kind}
	}

	set := model.EntitySet{}
	for _, k := range kinds {
		if k.IsCapture() {
			captured, err := s.queryCaptured(ctx,
				"SELECT kind, payload FROM captured WHERE kind = $1 ORDER BY id DESC LIMIT $2",
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
		q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id DESC LIMIT $1",
			selectEntityColumns(k), tableName(k))
		ents, err := s.queryEntities(ctx, k, q, limit)
		if err != nil {
			return nil, err
		}
		set[k] = ents
	}
	return set, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.StoreStats, error) {
	stats := &model.StoreStats{EntityCounts: map[model.EntityKind]int64{}}

	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM batches").Scan(&stats.Batches); err != nil {
		return nil, eris.Wrap(err, "postgres: count batches")
	}
	for _, kind := range model.Kinds {
		var n int64
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(kind))
		if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", kind)
		}
		stats.EntityCounts[kind] = n
	}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM captured").Scan(&stats.Captured); err != nil {
		return nil, eris.Wrap(err, "postgres: count captured")
	}
	err := s.pool.QueryRow(ctx, "SELECT pg_database_size(current_database())").Scan(&stats.SizeBytes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: database size")
	}
	return stats, nil
}

func (s *PostgresStore) queryEntities(ctx context.Context, kind model.EntityKind, query string, args ...any) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", kind)
	}
	defer rows.Close()

	ents := []model.Entity{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", kind)
		}
		e, err := decodeEntityRow(kind, vals)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: decode %s", kind)
		}
		ents = append(ents, e)
	}
	return ents, eris.Wrapf(rows.Err(), "postgres: query %s", kind)
}

func (s *PostgresStore) queryCaptured(ctx context.Context, query string, args ...any) (map[model.EntityKind][]model.Entity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query captured")
	}
	defer rows.Close()

	out := map[model.EntityKind][]model.Entity{}
	for rows.Next() {
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan captured")
		}
		var e model.Entity
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: decode captured payload")
		}
		k := model.EntityKind(kind)
		out[k] = append(out[k], e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query captured")
}

func scanPgBatch(row scannable) (*model.Batch, error) {
	var b model.Batch
	var status string
	var metaJSON []byte
	var completedAt *time.Time
	var errorMessage *string

	err := row.Scan(&b.BatchID, &b.OperationName, &status, &b.TotalEntities,
		&b.EntitiesStored, &b.Errors, &metaJSON, &b.StartedAt, &completedAt, &errorMessage)
	if err != nil {
		return nil, err
	}
	b.Status = model.BatchStatus(status)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &b.CallMetadata); err != nil {
			return nil, eris.Wrap(err, "decode call metadata")
		}
	}
	b.CompletedAt = completedAt
	if errorMessage != nil {
		b.ErrorMessage = *errorMessage
	}
	return &b, nil
}
