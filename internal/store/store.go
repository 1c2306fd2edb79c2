package store

import (
	"context"

	"github.com/driftline/reddit-ingest/internal/model"
)

// defaultLimit caps list queries when the caller does not specify one.
const defaultLimit = 50

// BatchFilter specifies criteria for listing batches.
type BatchFilter struct {
	Status    model.BatchStatus `json:"status,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
// Each insert commits immediately; a batch is a logical grouping, not a
// transaction, so a single entity's failure never blocks its siblings.
type Store interface {
	// Batch ledger
	CreateBatch(ctx context.Context, operation string, callMeta model.CallMetadata) (string, error)
	FinalizeBatch(ctx context.Context, batchID string, status model.BatchStatus, stored, errors int, errorMessage string) error
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error)

	// Entities
	InsertEntity(ctx context.Context, kind model.EntityKind, entity model.Entity, batchID, operation string, callMeta model.CallMetadata) error
	GetBatchEntities(ctx context.Context, batchID string) (model.EntitySet, error)
	Recent(ctx context.Context, kind model.EntityKind, limit int) (model.EntitySet, error)

	// Maintenance
	Stats(ctx context.Context) (*model.StoreStats, error)
	Migrate(ctx context.Context) error
	Close() error
}
