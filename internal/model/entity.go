package model

import "time"

// EntityKind identifies one of the fixed domain categories an extracted
// record can belong to. The five core kinds map to dedicated tables;
// KindUnknown and KindValidationError are capture buckets for payloads
// that could not be classified.
type EntityKind string

const (
	KindUser       EntityKind = "users"
	KindPost       EntityKind = "posts"
	KindComment    EntityKind = "comments"
	KindCommunity  EntityKind = "communities"
	KindSubmission EntityKind = "submissions"

	KindUnknown         EntityKind = "unknown"
	KindValidationError EntityKind = "validation_error"
)

// Kinds lists the five core entity kinds in canonical processing order.
var Kinds = []EntityKind{KindUser, KindPost, KindComment, KindCommunity, KindSubmission}

// CaptureKinds lists the buckets for unclassified payloads.
var CaptureKinds = []EntityKind{KindUnknown, KindValidationError}

// Valid reports whether k is one of the five core kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindUser, KindPost, KindComment, KindCommunity, KindSubmission:
		return true
	}
	return false
}

// IsCapture reports whether k is one of the capture buckets.
func (k EntityKind) IsCapture() bool {
	return k == KindUnknown || k == KindValidationError
}

// Entity is a single extracted record. Upstream responses drift, and
// decomposition emits partial stubs alongside full records, so fields stay
// loosely typed until the store maps them onto a kind's fixed column set.
type Entity map[string]any

// CallMetadata is opaque caller-supplied context recorded alongside every
// entity derived from a call.
type CallMetadata map[string]any

// ExtractionMetadata is stamped onto every produced entity when the caller
// supplied call metadata.
type ExtractionMetadata struct {
	OperationName string       `json:"operation_name"`
	ExtractedAt   time.Time    `json:"extracted_at"`
	CallMetadata  CallMetadata `json:"call_metadata"`
}

// ExtractionMetadataKey is the entity field under which extraction
// provenance is stamped.
const ExtractionMetadataKey = "extraction_metadata"

// EntitySet groups extracted entities by kind, preserving order within
// each kind.
type EntitySet map[EntityKind][]Entity

// NewEntitySet returns a set with all five core kinds initialized to
// empty slices, so consumers can range over Kinds without nil checks.
func NewEntitySet() EntitySet {
	s := make(EntitySet, len(Kinds))
	for _, k := range Kinds {
		s[k] = []Entity{}
	}
	return s
}

// Add appends an entity under the given kind.
func (s EntitySet) Add(kind EntityKind, e Entity) {
	s[kind] = append(s[kind], e)
}

// Total returns the number of entities across all kinds in the set.
func (s EntitySet) Total() int {
	n := 0
	for _, entities := range s {
		n += len(entities)
	}
	return n
}
