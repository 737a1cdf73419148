package storyimport

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/pkg/logger"
)

func smallBundle() *Bundle {
	return &Bundle{
		Story: entity.Record{"title": "Ashfall"},
		Characters: RecordList{
			{"id": "v1", "name": "Vex"},
			{"id": "m1", "name": "Mira"},
		},
		Relationships: RecordList{
			{"character1": "Vex", "character2": "Mira", "relationship_type": "ally"},
		},
	}
}

const fullBundleJSON = `{
  "storyWorld": {"name": "Ember Realm", "genre": "fantasy"},
  "story": {"title": "Ashfall", "story_type": "novel"},
  "characters": [
    {"name": "Vex", "role": "protagonist"},
    {"name": "Mira"},
    "garbage"
  ],
  "locations": [
    {"name": "Tower", "parent_location": "Kingdom"},
    {"name": "Kingdom", "climate": "temperate"}
  ],
  "factions": [
    {"name": "Guild", "type": "merchant", "leader": "Vex", "headquarters": "Tower"}
  ],
  "objects": [
    {"name": "Key", "owner": "Mira", "location": "Atlantis"}
  ],
  "events": [
    {"title": "The Fire", "sequence_number": 1, "involved_characters": ["Vex", {"name": "Mira", "importance": 8}]},
    {"title": "The Flood", "sequence_number": 2}
  ],
  "relationships": [
    {"character1": "Vex", "character2": "Mira", "type": "rival"}
  ],
  "plotlines": [
    {"title": "Revenge", "starting_event": "The Fire", "climax_event": "Unknown", "events": ["The Fire", "The Flood"], "characters": ["Vex"]}
  ],
  "scenes": [
    {"title": "Opening", "characters": ["Mira", {"name": "Vex", "importance": "primary"}]}
  ],
  "eventDependencies": [
    {"predecessor": "The Fire", "successor": "The Flood", "strength": 7}
  ]
}`

func TestImportAnalyzedStory_Minimal(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	result := NewImporter(store).ImportAnalyzedStory(ctx, smallBundle())
	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.StoryID)

	for _, stage := range StageOrder {
		want := 0
		switch stage {
		case StageStory, StageRelationships:
			want = 1
		case StageCharacters:
			want = 2
		}
		assert.Equal(t, want, result.Counts[stage], stage)
	}

	rels := mustSelect(t, store, entity.TableCharacterRelationships, nil)
	require.Len(t, rels, 1)
	assert.Equal(t, "v1", rels[0]["character1_id"])
	assert.Equal(t, "m1", rels[0]["character2_id"])
	assert.Equal(t, "ally", rels[0]["relationship_type"])
	assert.Equal(t, int64(5), rels[0]["intensity"])
	assert.Equal(t, result.StoryID, rels[0]["story_id"])

	chars := mustSelect(t, store, entity.TableCharacters, entity.Filter{"story_id": result.StoryID})
	assert.Len(t, chars, 2)
}

func TestImportAnalyzedStory_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	importer := NewImporter(store)

	bundle, err := DecodeBundle([]byte(fullBundleJSON))
	require.NoError(t, err)

	first := importer.ImportAnalyzedStory(ctx, bundle)
	require.True(t, first.Success, first.Error)
	before := tableSizes(t, store)

	second := importer.ImportAnalyzedStory(ctx, bundle)
	require.True(t, second.Success, second.Error)
	assert.Equal(t, first.StoryID, second.StoryID)
	assert.Equal(t, first.StoryWorldID, second.StoryWorldID)
	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, before, tableSizes(t, store))
}

func TestImportAnalyzedStory_FullBundle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	bundle, err := DecodeBundle([]byte(fullBundleJSON))
	require.NoError(t, err)
	result := NewImporter(store).ImportAnalyzedStory(ctx, bundle)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, map[string]int{
		StageStoryWorld:         1,
		StageStory:              1,
		StageCharacters:         2,
		StageLocations:          2,
		StageFactions:           1,
		StageObjects:            1,
		StageEvents:             2,
		StageRelationships:      1,
		StagePlotlines:          1,
		StageScenes:             1,
		StageCharacterEvents:    2,
		StagePlotlineEvents:     2,
		StagePlotlineCharacters: 1,
		StageEventDependencies:  1,
		StageSceneCharacters:    2,
	}, result.Counts)

	characters, ok := result.Stage(StageCharacters)
	require.True(t, ok)
	assert.Equal(t, StagePartial, characters.Status)
	assert.Equal(t, 1, characters.Skipped)

	ids := func(table entity.Table, field string) map[string]string {
		out := map[string]string{}
		for _, row := range mustSelect(t, store, table, nil) {
			out[row.String(field)] = row.ID()
		}
		return out
	}
	charIDs := ids(entity.TableCharacters, "name")
	locIDs := ids(entity.TableLocations, "name")
	eventIDs := ids(entity.TableEvents, "title")

	world := mustSelect(t, store, entity.TableStoryWorlds, nil)
	require.Len(t, world, 1)
	assert.Equal(t, result.StoryWorldID, world[0].ID())
	story := mustSelect(t, store, entity.TableStories, nil)
	require.Len(t, story, 1)
	assert.Equal(t, result.StoryWorldID, story[0]["story_world_id"])

	vex := mustSelect(t, store, entity.TableCharacters, entity.Filter{"id": charIDs["Vex"]})[0]
	assert.Equal(t, result.StoryID, vex["story_id"])
	assert.Equal(t, result.StoryWorldID, vex["story_world_id"])

	tower := mustSelect(t, store, entity.TableLocations, entity.Filter{"id": locIDs["Tower"]})[0]
	assert.Equal(t, locIDs["Kingdom"], tower["parent_location_id"])

	guild := mustSelect(t, store, entity.TableFactions, nil)[0]
	assert.Equal(t, "merchant", guild["faction_type"])
	assert.Equal(t, charIDs["Vex"], guild["leader_character_id"])
	assert.Equal(t, locIDs["Tower"], guild["headquarters_location_id"])

	key := mustSelect(t, store, entity.TableObjects, nil)[0]
	assert.Equal(t, charIDs["Mira"], key["current_owner"])
	assert.NotContains(t, key, "current_location")

	rel := mustSelect(t, store, entity.TableCharacterRelationships, nil)[0]
	assert.Equal(t, "other", rel["relationship_type"])

	plot := mustSelect(t, store, entity.TablePlotlines, nil)[0]
	assert.Equal(t, eventIDs["The Fire"], plot["starting_event_id"])
	assert.NotContains(t, plot, "climax_event_id")

	miraEvent := mustSelect(t, store, entity.TableCharacterEvents, entity.Filter{"character_id": charIDs["Mira"]})
	require.Len(t, miraEvent, 1)
	assert.Equal(t, eventIDs["The Fire"], miraEvent[0]["event_id"])
	assert.Equal(t, int64(8), miraEvent[0]["importance"])

	dep := mustSelect(t, store, entity.TableEventDependencies, nil)[0]
	assert.Equal(t, eventIDs["The Fire"], dep["predecessor_event_id"])
	assert.Equal(t, eventIDs["The Flood"], dep["successor_event_id"])
	assert.Equal(t, int64(7), dep["strength"])

	vexScene := mustSelect(t, store, entity.TableSceneCharacters, entity.Filter{"character_id": charIDs["Vex"]})
	require.Len(t, vexScene, 1)
	assert.Equal(t, "primary", vexScene[0]["importance"])

	assert.NotEmpty(t, result.Warnings)
}

func TestImportAnalyzedStory_MissingStoryIsFatal(t *testing.T) {
	store := newMemoryStore(t)

	result := NewImporter(store).ImportAnalyzedStory(context.Background(), &Bundle{
		Characters: RecordList{{"name": "Vex"}},
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "story stage failed")
	_, ran := result.Stage(StageCharacters)
	assert.False(t, ran)
	assert.Empty(t, mustSelect(t, store, entity.TableCharacters, nil))
}

func TestImportAnalyzedStory_FactionLookupFailureStopsImport(t *testing.T) {
	store := newFaultyStore(newMemoryStore(t))
	store.failSelect[entity.TableFactions] = errors.New("relation does not exist")

	bundle := smallBundle()
	bundle.Factions = RecordList{{"name": "Guild", "leader": "Vex"}}
	bundle.Objects = RecordList{{"name": "Key", "owner": "Vex"}}

	result := NewImporter(store).ImportAnalyzedStory(context.Background(), bundle)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "factions stage failed")
	assert.Contains(t, result.Error, "relation does not exist")
	assert.Zero(t, store.inserts[entity.TableFactions])
	assert.Equal(t, 2, result.Counts[StageCharacters])

	factions, ok := result.Stage(StageFactions)
	require.True(t, ok)
	assert.Equal(t, StageFatal, factions.Status)
	_, ran := result.Stage(StageObjects)
	assert.False(t, ran)
	assert.Zero(t, store.inserts[entity.TableObjects])
}

func TestImportAnalyzedStory_CancelledContext(t *testing.T) {
	store := newFaultyStore(newMemoryStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewImporter(store).ImportAnalyzedStory(ctx, smallBundle())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, context.Canceled.Error())
	assert.Zero(t, store.inserts[entity.TableStories])
}

func TestImportAnalyzedStory_StoryTitleScopedToWorld(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	importer := NewImporter(store)

	first := importer.ImportAnalyzedStory(ctx, &Bundle{
		StoryWorld: entity.Record{"name": "North"},
		Story:      entity.Record{"title": "Ashfall"},
	})
	require.True(t, first.Success, first.Error)
	second := importer.ImportAnalyzedStory(ctx, &Bundle{
		StoryWorld: entity.Record{"name": "South"},
		Story:      entity.Record{"title": "Ashfall"},
	})
	require.True(t, second.Success, second.Error)

	assert.NotEqual(t, first.StoryID, second.StoryID)
	assert.Len(t, mustSelect(t, store, entity.TableStories, nil), 2)
}

func TestImportAnalyzedStory_ExplicitIDUpdatesRowOutsideStory(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	mustInsert(t, store, entity.TableCharacters, entity.Record{"id": "c-world", "name": "Old Name"})

	result := NewImporter(store).ImportAnalyzedStory(ctx, &Bundle{
		Story:      entity.Record{"title": "Ashfall"},
		Characters: RecordList{{"id": "c-world", "name": "New Name"}},
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Counts[StageCharacters])

	chars := mustSelect(t, store, entity.TableCharacters, nil)
	require.Len(t, chars, 1)
	assert.Equal(t, "c-world", chars[0].ID())
	assert.Equal(t, "New Name", chars[0]["name"])
}

func TestImportAnalyzedStory_LogsStoryIDOncePerLine(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("debug", "json", &buf)
	t.Cleanup(func() { logger.InitWithWriter("info", "json", &bytes.Buffer{}) })

	result := NewImporter(newMemoryStore(t)).ImportAnalyzedStory(context.Background(), smallBundle())
	require.True(t, result.Success, result.Error)

	var finished string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, strings.Count(line, `"story_id":`), 1, line)
		if strings.Contains(line, "story import finished") {
			finished = line
		}
	}
	require.NotEmpty(t, finished)
	assert.Contains(t, finished, `"story_id":"`+result.StoryID+`"`)
}

func tableSizes(t *testing.T, store repository.RecordStore) map[entity.Table]int {
	t.Helper()
	out := make(map[entity.Table]int)
	for _, table := range entity.Tables() {
		out[table] = len(mustSelect(t, store, table, nil))
	}
	return out
}
