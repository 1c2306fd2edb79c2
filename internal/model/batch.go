package model

import "time"

// BatchStatus represents the lifecycle state of an ingestion batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// Batch is the ledger record for one invocation of the
// extraction-and-store pipeline.
type Batch struct {
	BatchID        string       `json:"batch_id"`
	OperationName  string       `json:"operation_name"`
	Status         BatchStatus  `json:"status"`
	TotalEntities  int          `json:"total_entities"`
	EntitiesStored int          `json:"entities_stored"`
	Errors         int          `json:"errors"`
	CallMetadata   CallMetadata `json:"call_metadata,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
}

// BatchOutcome summarizes one ProcessAndStore invocation. Per-entity
// failures are reported here as data, never as an error return.
type BatchOutcome struct {
	BatchID        string             `json:"batch_id"`
	Status         BatchStatus        `json:"status"`
	TotalEntities  int                `json:"total_entities"`
	EntitiesStored map[EntityKind]int `json:"entities_stored"`
	Errors         int                `json:"errors"`
	ErrorMessage   string             `json:"error_message,omitempty"`
}

// StoreStats holds database-level statistics.
type StoreStats struct {
	Batches      int64                `json:"batches"`
	EntityCounts map[EntityKind]int64 `json:"entity_counts"`
	Captured     int64                `json:"captured"`
	SizeBytes    int64                `json:"size_bytes,omitempty"`
}
