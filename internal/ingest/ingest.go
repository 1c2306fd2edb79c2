// Package ingest orchestrates the extract-then-store pipeline: one raw
// API response in, one finalized batch out.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/driftline/reddit-ingest/internal/extract"
	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/store"
)

// Ingestor ties extraction to a store.
type Ingestor struct {
	store store.Store
}

func New(s store.Store) *Ingestor {
	return &Ingestor{store: s}
}

// ProcessAndStore runs a raw response through extraction and persists
// every resulting entity under a fresh batch. Entity failures are
// isolated: a bad entity is counted and reported, and the rest of the
// batch still lands. The batch always reaches a terminal status --
// failed when any entity failed, completed otherwise.
func (i *Ingestor) ProcessAndStore(ctx context.Context, raw json.RawMessage, operation string, callMeta model.CallMetadata) (*model.BatchOutcome, error) {
	batchID, err := i.store.CreateBatch(ctx, operation, callMeta)
	if err != nil {
		return nil, eris.Wrap(err, "create batch")
	}
	log := zap.L().With(zap.String("batch_id", batchID), zap.String("operation", operation))
	log.Info("processing response")

	set := extract.Extract(raw, operation, callMeta)

	stored := map[model.EntityKind]int{}
	for _, kind := range model.Kinds {
		stored[kind] = 0
	}
	var errCount int
	var messages []string

	persist := func(kind model.EntityKind, counted bool) {
		for _, e := range set[kind] {
			if err := i.store.InsertEntity(ctx, kind, e, batchID, operation, callMeta); err != nil {
				errCount++
				messages = append(messages, fmt.Sprintf("store %s: %s", kind, eris.Cause(err)))
				log.Warn("entity store failed", zap.String("kind", string(kind)), zap.Error(err))
				continue
			}
			if counted {
				stored[kind]++
			}
		}
	}
	for _, kind := range model.Kinds {
		persist(kind, true)
	}
	// Capture buckets are retained for inspection but do not count as
	// stored entities.
	for _, kind := range model.CaptureKinds {
		persist(kind, false)
	}

	storedTotal := 0
	for _, n := range stored {
		storedTotal += n
	}

	status := model.BatchCompleted
	if errCount > 0 {
		status = model.BatchFailed
	}
	errorMessage := strings.Join(messages, "; ")

	if err := i.store.FinalizeBatch(ctx, batchID, status, storedTotal, errCount, errorMessage); err != nil {
		return nil, eris.Wrapf(err, "finalize batch %s", batchID)
	}
	log.Info("batch finalized",
		zap.String("status", string(status)),
		zap.Int("stored", storedTotal),
		zap.Int("errors", errCount))

	return &model.BatchOutcome{
		BatchID:        batchID,
		Status:         status,
		TotalEntities:  storedTotal,
		EntitiesStored: stored,
		Errors:         errCount,
		ErrorMessage:   errorMessage,
	}, nil
}
