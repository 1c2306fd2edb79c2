package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityKind_Valid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), "kind %s", k)
		assert.False(t, k.IsCapture(), "kind %s", k)
	}
	for _, k := range CaptureKinds {
		assert.False(t, k.Valid(), "kind %s", k)
		assert.True(t, k.IsCapture(), "kind %s", k)
	}
	assert.False(t, EntityKind("moderators").Valid())
}

func TestNewEntitySet(t *testing.T) {
	set := NewEntitySet()
	assert.Len(t, set, len(Kinds))
	for _, k := range Kinds {
		entities, ok := set[k]
		assert.True(t, ok)
		assert.Empty(t, entities)
	}
	assert.Equal(t, 0, set.Total())
}

func TestEntitySet_AddAndTotal(t *testing.T) {
	set := NewEntitySet()
	set.Add(KindUser, Entity{"username": "alice"})
	set.Add(KindUser, Entity{"username": "bob"})
	set.Add(KindPost, Entity{"id": "p1"})

	assert.Len(t, set[KindUser], 2)
	assert.Equal(t, 3, set.Total())
}

func TestBatchStatus_Terminal(t *testing.T) {
	assert.False(t, BatchProcessing.Terminal())
	assert.True(t, BatchCompleted.Terminal())
	assert.True(t, BatchFailed.Terminal())
	assert.False(t, BatchStatus("queued").Terminal())
}
