package storyimport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
)

// seedStory 写入一个故事与若干角色、事件
func seedStory(t *testing.T, store repository.RecordStore) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		table entity.Table
		row   entity.Record
	}{
		{entity.TableStories, entity.Record{"id": "s1", "title": "Ashfall"}},
		{entity.TableCharacters, entity.Record{"id": "v1", "name": "Vex", "story_id": "s1"}},
		{entity.TableCharacters, entity.Record{"id": "m1", "name": "Mira", "story_id": "s1"}},
		{entity.TableEvents, entity.Record{"id": "e1", "title": "The Fire", "story_id": "s1"}},
		{entity.TableEvents, entity.Record{"id": "e2", "title": "The Flood", "story_id": "s1"}},
	}
	for _, r := range rows {
		_, err := store.Insert(ctx, r.table, r.row)
		require.NoError(t, err)
	}
}

func TestLinkCharacterRelationships_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	rows, res := linker.LinkCharacterRelationships(ctx, []entity.Record{
		{"character1": "vex", "character2": "MIRA", "relationship_type": "Ally"},
	})
	assert.Equal(t, StageSuccess, res.Status)
	assert.Equal(t, 1, res.Count)
	require.Len(t, rows, 1)

	stored := mustSelect(t, store, entity.TableCharacterRelationships, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, "v1", stored[0]["character1_id"])
	assert.Equal(t, "m1", stored[0]["character2_id"])
	assert.Equal(t, "ally", stored[0]["relationship_type"])
	assert.Equal(t, int64(5), stored[0]["intensity"])
	assert.Equal(t, "s1", stored[0]["story_id"])
}

func TestLinkCharacterRelationships_UnresolvedIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	rows, res := linker.LinkCharacterRelationships(ctx, []entity.Record{
		{"character1": "Vex", "character2": "Ghost"},
		{"character2": "Mira"},
	})
	assert.Empty(t, rows)
	assert.Equal(t, StagePartial, res.Status)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Warnings, 2)
	assert.Empty(t, mustSelect(t, store, entity.TableCharacterRelationships, nil))
}

func TestLinkCharacterRelationships_ReversedPairWrittenOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkCharacterRelationships(ctx, []entity.Record{
		{"character1": "Vex", "character2": "Mira", "relationship_type": "ally"},
		{"character1": "Mira", "character2": "Vex", "relationship_type": "enemy"},
	})
	assert.Equal(t, StageSuccess, res.Status)

	stored := mustSelect(t, store, entity.TableCharacterRelationships, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, "ally", stored[0]["relationship_type"])
}

func TestLinkCharacterRelationships_SelfReferenceSkipped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkCharacterRelationships(ctx, []entity.Record{
		{"character1": "Vex", "character2": "vex"},
	})
	assert.Equal(t, StagePartial, res.Status)
	assert.Empty(t, mustSelect(t, store, entity.TableCharacterRelationships, nil))
}

func TestLinkCharacterRelationships_EmptyInputSkipsStage(t *testing.T) {
	store := newMemoryStore(t)
	linker := NewLinker(NewEngine(store), "")

	rows, res := linker.LinkCharacterRelationships(context.Background(), nil)
	assert.Nil(t, rows)
	assert.Equal(t, StageSkipped, res.Status)
}

func TestLinkCharacterRelationships_SnapshotFailureIsFatal(t *testing.T) {
	store := newFaultyStore(newMemoryStore(t))
	store.failSelect[entity.TableCharacters] = errors.New("timeout")
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkCharacterRelationships(context.Background(), []entity.Record{
		{"character1": "Vex", "character2": "Mira"},
	})
	assert.Equal(t, StageFatal, res.Status)
	assert.Contains(t, res.Error, "timeout")
	assert.Zero(t, store.inserts[entity.TableCharacterRelationships])
}

func TestLinkPlotlineEvents_InsertOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	mustInsert(t, store, entity.TablePlotlines, entity.Record{"id": "p1", "title": "Revenge", "story_id": "s1"})
	linker := NewLinker(NewEngine(store), "s1")

	link := []entity.Record{{"plotline": "Revenge", "event": "The Fire"}}
	_, res := linker.LinkPlotlineEvents(ctx, link)
	assert.Equal(t, 1, res.Count)
	_, res = linker.LinkPlotlineEvents(ctx, link)
	assert.Equal(t, StageSuccess, res.Status)

	stored := mustSelect(t, store, entity.TablePlotlineEvents, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, "p1", stored[0]["plotline_id"])
	assert.Equal(t, "e1", stored[0]["event_id"])
}

func TestLinkEventDependencies_UpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkEventDependencies(ctx, []entity.Record{
		{"predecessor": "The Fire", "successor": "The Flood"},
	})
	require.Equal(t, StageSuccess, res.Status)
	stored := mustSelect(t, store, entity.TableEventDependencies, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(5), stored[0]["strength"])
	assert.Equal(t, "chronological", stored[0]["dependency_type"])

	_, res = linker.LinkEventDependencies(ctx, []entity.Record{
		{"predecessor_event_id": "e1", "successor_event_id": "e2", "strength": 8},
	})
	require.Equal(t, StageSuccess, res.Status)
	stored = mustSelect(t, store, entity.TableEventDependencies, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(8), stored[0]["strength"])
	assert.Equal(t, "chronological", stored[0]["dependency_type"])
}

func TestLinkEventDependencies_SelfDependencySkipped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkEventDependencies(ctx, []entity.Record{{"from": "The Fire", "to": "e1"}})
	assert.Equal(t, StagePartial, res.Status)
	assert.Empty(t, mustSelect(t, store, entity.TableEventDependencies, nil))
}

func TestLinkEventDependencies_CycleIsKept(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkEventDependencies(ctx, []entity.Record{
		{"from": "The Fire", "to": "The Flood"},
		{"from": "The Flood", "to": "The Fire"},
	})
	assert.Equal(t, StageSuccess, res.Status)
	assert.Equal(t, 2, res.Count)
	assert.Len(t, mustSelect(t, store, entity.TableEventDependencies, nil), 2)
}

func TestLinkCharacterEvents_DefaultsAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkCharacterEvents(ctx, []entity.Record{{"character": "Vex", "event": "The Fire"}})
	require.Equal(t, 1, res.Count)
	stored := mustSelect(t, store, entity.TableCharacterEvents, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(5), stored[0]["importance"])
	assert.Equal(t, "active", stored[0]["experience_type"])
	assert.Equal(t, int64(0), stored[0]["character_sequence_number"])

	_, res = linker.LinkCharacterEvents(ctx, []entity.Record{
		{"character_id": "v1", "event_id": "e1", "experience_type": "witness"},
	})
	require.Equal(t, 1, res.Count)
	stored = mustSelect(t, store, entity.TableCharacterEvents, nil)
	require.Len(t, stored, 1)
	assert.Equal(t, "witness", stored[0]["experience_type"])
	assert.Equal(t, int64(5), stored[0]["importance"])
}

func TestLinkSceneCharacters_DefaultImportance(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)
	mustInsert(t, store, entity.TableScenes, entity.Record{"id": "sc1", "title": "Opening", "story_id": "s1"})
	linker := NewLinker(NewEngine(store), "s1")

	_, res := linker.LinkSceneCharacters(ctx, []entity.Record{
		{"scene": "opening", "character": "Vex"},
		{"scene": "opening", "character": "Mira", "importance": "primary"},
	})
	assert.Equal(t, 2, res.Count)

	byCharacter := map[string]string{}
	for _, row := range mustSelect(t, store, entity.TableSceneCharacters, entity.Filter{"scene_id": "sc1"}) {
		byCharacter[row.String("character_id")] = row.String("importance")
	}
	assert.Equal(t, map[string]string{"v1": "secondary", "m1": "primary"}, byCharacter)
}

func TestLinkFactionLeaders(t *testing.T) {
	characters := NewSnapshot([]entity.Record{{"id": "c1", "name": "Vex"}}, "name")
	locations := NewSnapshot([]entity.Record{{"id": "l1", "name": "Citadel"}}, "name")

	out, warnings := LinkFactionLeaders([]entity.Record{
		{"name": "Guild", "leader": "vex", "headquarters": "Nowhere"},
		{"name": "Order", "leader_character_id": 42, "headquarters_location_id": "l1"},
		{"name": "Cult", "leader_name": "c1", "headquarters": "CITADEL"},
		nil,
	}, characters, locations)

	require.Len(t, out, 4)
	assert.Equal(t, entity.Record{"name": "Guild", "leader_character_id": "c1"}, out[0])
	assert.Equal(t, entity.Record{"name": "Order", "leader_character_id": 42, "headquarters_location_id": "l1"}, out[1])
	assert.Equal(t, entity.Record{"name": "Cult", "leader_character_id": "c1", "headquarters_location_id": "l1"}, out[2])
	assert.Nil(t, out[3])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Nowhere")
}

func TestLinkObjectReferences(t *testing.T) {
	characters := NewSnapshot([]entity.Record{{"id": "c1", "name": "Vex"}}, "name")
	locations := NewSnapshot([]entity.Record{{"id": "l1", "name": "Citadel"}}, "name")

	out, warnings := LinkObjectReferences([]entity.Record{
		{"name": "Key", "owner": "Vex", "location": "Citadel"},
		{"name": "Map", "current_owner": "Stranger"},
	}, characters, locations)

	assert.Equal(t, entity.Record{"name": "Key", "current_owner": "c1", "current_location": "l1"}, out[0])
	assert.Equal(t, entity.Record{"name": "Map"}, out[1])
	assert.Len(t, warnings, 1)
}

func TestLinkLocationParents(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	mustInsert(t, store, entity.TableLocations, entity.Record{"id": "l1", "name": "Kingdom"})
	mustInsert(t, store, entity.TableLocations, entity.Record{"id": "l2", "name": "Castle"})
	linker := NewLinker(NewEngine(store), "")

	snap, err := linker.Snapshot(ctx, entity.TableLocations)
	require.NoError(t, err)

	linked, warnings := linker.LinkLocationParents(ctx, []ParentLink{
		{LocationID: "l2", Parent: "kingdom"},
		{LocationID: "l1", Parent: "Kingdom"},
		{LocationID: "l1", Parent: "Atlantis"},
	}, snap)
	assert.Equal(t, 1, linked)
	assert.Len(t, warnings, 2)

	castle := mustSelect(t, store, entity.TableLocations, entity.Filter{"id": "l2"})
	require.Len(t, castle, 1)
	assert.Equal(t, "l1", castle[0]["parent_location_id"])

	kingdom := mustSelect(t, store, entity.TableLocations, entity.Filter{"id": "l1"})
	require.Len(t, kingdom, 1)
	assert.NotContains(t, kingdom[0], "parent_location_id")
}
