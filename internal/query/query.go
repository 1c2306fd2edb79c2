// Package query is the read-side facade over the store, shared by the
// CLI commands and the HTTP API.
package query

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/store"
)

// maxLimit bounds what a single read can return regardless of what the
// caller asks for.
const maxLimit = 500

// Reader answers read queries against a store.
type Reader struct {
	store store.Store
}

func NewReader(s store.Store) *Reader {
	return &Reader{store: s}
}

// Recent returns the newest entities of one kind, or of every core kind
// when kind is empty. Non-positive limits fall back to the store
// default; oversized ones are clamped.
func (r *Reader) Recent(ctx context.Context, kind model.EntityKind, limit int) (model.EntitySet, error) {
	if kind != "" && !kind.Valid() && !kind.IsCapture() {
		return nil, eris.Errorf("unknown entity kind %q", kind)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return r.store.Recent(ctx, kind, limit)
}

// Batch returns the ledger row for batchID, or nil if it does not exist.
func (r *Reader) Batch(ctx context.Context, batchID string) (*model.Batch, error) {
	return r.store.GetBatch(ctx, batchID)
}

// ByBatch returns every entity a batch stored, grouped by kind.
// The batch must exist even if it stored nothing.
func (r *Reader) ByBatch(ctx context.Context, batchID string) (model.EntitySet, error) {
	b, err := r.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, eris.Errorf("batch %s not found", batchID)
	}
	return r.store.GetBatchEntities(ctx, batchID)
}

// Batches lists ledger rows newest first.
func (r *Reader) Batches(ctx context.Context, filter store.BatchFilter) ([]model.Batch, error) {
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	return r.store.ListBatches(ctx, filter)
}

// Stats reports store-wide totals.
func (r *Reader) Stats(ctx context.Context) (*model.StoreStats, error) {
	return r.store.Stats(ctx)
}
