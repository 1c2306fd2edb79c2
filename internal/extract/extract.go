// Package extract turns raw operation responses into typed entity sets.
// Extraction is total: shape drift and unknown operations degrade to
// capture buckets instead of failing the pipeline.
package extract

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/schema"
)

// Extract looks up the schema for operation, validates raw against it and
// decomposes it into entities. It never fails outward:
//
//   - no registered schema: the whole payload lands in the "unknown"
//     bucket, unclassified but preserved
//   - validation failure: a single "validation_error" pseudo-entity
//     captures the reason and the original payload byte-for-byte
//
// When callMeta is supplied, every produced entity is stamped with an
// extraction_metadata sub-object, regardless of which path was taken.
func Extract(raw json.RawMessage, operation string, callMeta model.CallMetadata) model.EntitySet {
	set := extract(raw, operation)

	if callMeta != nil {
		stamp := model.ExtractionMetadata{
			OperationName: operation,
			ExtractedAt:   time.Now().UTC(),
			CallMetadata:  callMeta,
		}
		for _, entities := range set {
			for _, e := range entities {
				e[model.ExtractionMetadataKey] = stamp
			}
		}
	}
	return set
}

func extract(raw json.RawMessage, operation string) model.EntitySet {
	sch, ok := schema.For(operation)
	if !ok {
		return model.EntitySet{
			model.KindUnknown: {unknownEntity(raw)},
		}
	}

	if err := sch.Validate(raw); err != nil {
		zap.L().Warn("response failed shape validation",
			zap.String("operation", operation),
			zap.Error(err),
		)
		set := model.NewEntitySet()
		set.Add(model.KindValidationError, model.Entity{
			"error": err.Error(),
			"data":  raw,
		})
		return set
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		// Validate accepted the payload, so this only fires for
		// non-object roots (e.g. a bare array).
		set := model.NewEntitySet()
		set.Add(model.KindValidationError, model.Entity{
			"error": "response is not a JSON object",
			"data":  raw,
		})
		return set
	}

	return sch.Decompose(resp)
}

// unknownEntity preserves an unclassified payload as an entity. Object
// payloads keep their own fields; anything else is wrapped under "data".
func unknownEntity(raw json.RawMessage) model.Entity {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return model.Entity(obj)
	}
	return model.Entity{"data": raw}
}
