package storyimport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-graph-api/internal/domain/entity"
)

func TestNameIndex_ResolveIsCaseInsensitive(t *testing.T) {
	idx := BuildNameIndex([]entity.Record{{"name": "Mira Latch", "id": "c1"}}, "name")

	id, ok := idx.Resolve("mira latch")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	id, ok = idx.Resolve("  MIRA LATCH ")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
}

func TestNameIndex_MissIsNotAnError(t *testing.T) {
	idx := BuildNameIndex([]entity.Record{{"name": "Mira Latch", "id": "c1"}}, "name")

	id, ok := idx.Resolve("Vex")
	assert.False(t, ok)
	assert.Empty(t, id)

	_, ok = idx.Resolve("")
	assert.False(t, ok)
}

func TestNameIndex_LastOneWins(t *testing.T) {
	idx := BuildNameIndex([]entity.Record{
		{"title": "The Fall", "id": "e1"},
		{"title": "the fall", "id": "e2"},
		{"title": "No ID"},
	}, "title")

	id, ok := idx.Resolve("THE FALL")
	assert.True(t, ok)
	assert.Equal(t, "e2", id)
	assert.Len(t, idx, 1)
}

func TestSnapshot_ResolveAcceptsNamesAndIDs(t *testing.T) {
	snap := NewSnapshot([]entity.Record{{"id": "l1", "name": "Harbor"}}, "name")

	id, ok := snap.Resolve("harbor")
	assert.True(t, ok)
	assert.Equal(t, "l1", id)

	id, ok = snap.Resolve("l1")
	assert.True(t, ok)
	assert.Equal(t, "l1", id)

	snap.Put(entity.Record{"id": "l2", "name": "Lighthouse"})
	row, ok := snap.ByName("LIGHTHOUSE")
	assert.True(t, ok)
	assert.Equal(t, "l2", row.ID())
	assert.Equal(t, 2, snap.Len())
}
