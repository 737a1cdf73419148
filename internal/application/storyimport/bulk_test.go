package storyimport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/domain/entity"
)

func bulkRecords() []any {
	return []any{
		map[string]any{"storyWorld": map[string]any{"name": "Ember Realm"}},
		map[string]any{"title": "Ashfall", "story_type": "novel"},
		[]any{
			map[string]any{"id": "v1", "name": "Vex", "role": "protagonist"},
			map[string]any{"id": "m1", "name": "Mira", "role": "Antagonist"},
			"junk",
		},
		map[string]any{"name": "Keep", "location_type": "castle"},
		map[string]any{"note": "no recognizable fields"},
		map[string]any{"character1_id": "v1", "character2_id": "m1", "relationship_type": "friend"},
		map[string]any{"character1_id": "v1", "character2_id": "ghost", "relationship_type": "enemy"},
	}
}

func TestImportEntities_ThreadsOwnership(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	result, err := NewImporter(store).ImportEntities(ctx, bulkRecords(), "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Counts[KindStoryWorld])
	assert.Equal(t, 1, result.Counts[KindStory])
	assert.Equal(t, 2, result.Counts[KindCharacter])
	assert.Equal(t, 1, result.Counts[KindLocation])
	assert.Equal(t, 1, result.Counts[KindCharacterRelationship])
	assert.Equal(t, 0, result.Counts[KindEvent])
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, result.Warnings, 3)
	require.NotEmpty(t, result.StoryID)
	require.NotEmpty(t, result.StoryWorldID)

	story := mustSelect(t, store, entity.TableStories, nil)
	require.Len(t, story, 1)
	assert.Equal(t, result.StoryWorldID, story[0]["story_world_id"])

	for _, c := range mustSelect(t, store, entity.TableCharacters, nil) {
		assert.Equal(t, result.StoryID, c["story_id"])
		assert.Equal(t, result.StoryWorldID, c["story_world_id"])
	}
	keep := mustSelect(t, store, entity.TableLocations, nil)
	require.Len(t, keep, 1)
	assert.Equal(t, result.StoryID, keep[0]["story_id"])

	rels := mustSelect(t, store, entity.TableCharacterRelationships, nil)
	require.Len(t, rels, 1)
	assert.Equal(t, "friend", rels[0]["relationship_type"])
	assert.Equal(t, result.StoryID, rels[0]["story_id"])
}

func TestImportEntities_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	importer := NewImporter(store)

	first, err := importer.ImportEntities(ctx, bulkRecords(), "", "")
	require.NoError(t, err)
	before := tableSizes(t, store)

	second, err := importer.ImportEntities(ctx, bulkRecords(), "", "")
	require.NoError(t, err)
	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, first.StoryID, second.StoryID)
	assert.Equal(t, before, tableSizes(t, store))
}

func TestImportEntities_UsesSuppliedStory(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	result, err := NewImporter(store).ImportEntities(ctx, []any{
		map[string]any{"name": "Vex", "personality": "grim"},
		map[string]any{"title": "The Fire", "sequence_number": 1, "chronological_time": "dawn"},
	}, "s-ext", "")
	require.NoError(t, err)
	assert.Equal(t, "s-ext", result.StoryID)
	assert.Equal(t, 1, result.Counts[KindCharacter])
	assert.Equal(t, 1, result.Counts[KindEvent])

	chars := mustSelect(t, store, entity.TableCharacters, entity.Filter{"story_id": "s-ext"})
	assert.Len(t, chars, 1)
	events := mustSelect(t, store, entity.TableEvents, entity.Filter{"story_id": "s-ext"})
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0]["sequence_number"])
}

func TestImportEntities_EmptyGroupIsSkipped(t *testing.T) {
	store := newMemoryStore(t)

	result, err := NewImporter(store).ImportEntities(context.Background(), []any{[]any{}, 42}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
}

func TestImportEntities_CancelledContext(t *testing.T) {
	store := newMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImporter(store).ImportEntities(ctx, bulkRecords(), "", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mustSelect(t, store, entity.TableStories, nil))
}

func TestDecodeBundle_YAML(t *testing.T) {
	bundle, err := DecodeBundle([]byte(`
story:
  title: Ashfall
characters:
  - name: Vex
  - just a string
relationships:
  - character1: Vex
    character2: Mira
`))
	require.NoError(t, err)
	assert.Equal(t, "Ashfall", bundle.Story.String("title"))
	require.Len(t, bundle.Characters, 2)
	assert.Nil(t, bundle.Characters[1])
	assert.Len(t, bundle.Relationships, 1)
}

func TestDecodeRecords(t *testing.T) {
	records, err := DecodeRecords([]byte(`{"name": "Vex"}`))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = DecodeRecords([]byte("- name: Vex\n- name: Mira\n"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = DecodeRecords([]byte("  "))
	assert.Error(t, err)
}

func TestImportEntities_ResolvesObjectAndFactionNames(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	result, err := NewImporter(store).ImportEntities(ctx, []any{
		map[string]any{"title": "Ashfall", "story_type": "novel"},
		map[string]any{"id": "v1", "name": "Vex", "role": "protagonist"},
		map[string]any{"id": "k1", "name": "Keep", "location_type": "castle"},
		map[string]any{"name": "Blade", "significance": "high", "current_owner": "Vex", "current_location": "Nowhere"},
		map[string]any{"name": "Guild", "faction_type": "merchant", "leader": "Vex", "headquarters": "Keep"},
	}, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Counts[KindObject])
	assert.Equal(t, 1, result.Counts[KindFaction])
	assert.Zero(t, result.Skipped)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `unresolved current_location "Nowhere"`)

	objects := mustSelect(t, store, entity.TableObjects, nil)
	require.Len(t, objects, 1)
	assert.Equal(t, "v1", objects[0]["current_owner"])
	assert.Empty(t, objects[0]["current_location"])

	factions := mustSelect(t, store, entity.TableFactions, nil)
	require.Len(t, factions, 1)
	assert.Equal(t, "v1", factions[0]["leader_character_id"])
	assert.Equal(t, "k1", factions[0]["headquarters_location_id"])
}

func TestImportEntities_SelfDependencySkipped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	seedStory(t, store)

	result, err := NewImporter(store).ImportEntities(ctx, []any{
		map[string]any{"predecessor_event_id": "e1", "successor_event_id": "e1"},
		map[string]any{"predecessor_event_id": "e1", "successor_event_id": "e2"},
	}, "s1", "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Counts[KindEventDependency])
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, result.Warnings[0], "same record")
	deps := mustSelect(t, store, entity.TableEventDependencies, nil)
	require.Len(t, deps, 1)
	assert.Equal(t, "e2", deps[0]["successor_event_id"])
}
