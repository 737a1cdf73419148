package storyimport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-graph-api/internal/domain/entity"
)

func TestClassifyEntity(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want EntityKind
	}{
		{"faction by faction_type", map[string]any{"name": "Guild", "faction_type": "guild"}, KindFaction},
		{"faction by type and ideology", map[string]any{"type": "cult", "ideology": "order"}, KindFaction},
		{"location by location_type", map[string]any{"name": "Harbor", "location_type": "city"}, KindLocation},
		{"location by climate", map[string]any{"name": "Dunes", "climate": "arid"}, KindLocation},
		{"question with status", map[string]any{"question": "Who lit the fire?", "status": "open"}, KindStoryQuestion},
		{"question with scene ref", map[string]any{"story_question": "Why?", "origin_scene_id": "s1"}, KindStoryQuestion},
		{"question without marker is unknown", map[string]any{"question": "Why?"}, KindUnknown},
		{"scene by type", map[string]any{"title": "Opening", "type": "Chapter"}, KindScene},
		{"scene by status", map[string]any{"title": "Opening", "status": "draft"}, KindScene},
		{"character by role", map[string]any{"name": "Vex", "role": "protagonist"}, KindCharacter},
		{"character by motivation", map[string]any{"name": "Vex", "motivation": "revenge"}, KindCharacter},
		{"object by item_type", map[string]any{"name": "Key", "item_type": "tool"}, KindObject},
		{"object by significance and owner", map[string]any{"name": "Key", "significance": "high", "current_owner": "Vex"}, KindObject},
		{"event", map[string]any{"title": "Fire", "sequence_number": 1, "chronological_time": "dawn"}, KindEvent},
		{"event needs both fields", map[string]any{"title": "Fire", "sequence_number": 1}, KindUnknown},
		{"plotline by type", map[string]any{"title": "Arc", "plotline_type": "main"}, KindPlotline},
		{"plotline by climax", map[string]any{"title": "Arc", "climax_event_id": "e1"}, KindPlotline},
		{"relationship", map[string]any{"character1_id": "a", "character2_id": "b", "relationship_type": "ally"}, KindCharacterRelationship},
		{"dependency", map[string]any{"predecessor_event_id": "a", "successor_event_id": "b"}, KindEventDependency},
		{"story world wrapper", map[string]any{"storyWorld": map[string]any{"name": "Ash"}}, KindStoryWorld},
		{"story", map[string]any{"title": "Test", "story_type": "novel"}, KindStory},
		{"empty object", map[string]any{}, KindUnknown},
		{"empty array", []any{}, KindUnknown},
		{"nil", nil, KindUnknown},
		{"scalar", "Vex", KindUnknown},
		{"array by first element", []any{map[string]any{"location_type": "city"}, map[string]any{"role": "protagonist"}}, KindLocation},
		{"record slice", []entity.Record{{"role": "antagonist"}}, KindCharacter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEntity(tt.in))
		})
	}
}

func TestClassifyEntity_PriorityOrder(t *testing.T) {
	// type 同时命中势力与场景规则时势力优先
	assert.Equal(t, KindFaction, ClassifyEntity(map[string]any{"type": "scene", "goals": "power"}))
	// 场景规则先于角色规则
	assert.Equal(t, KindScene, ClassifyEntity(map[string]any{"status": "revised", "role": "protagonist"}))
	// 地点规则先于物品规则
	assert.Equal(t, KindLocation, ClassifyEntity(map[string]any{"climate": "wet", "object_type": "boat"}))

	order := ClassifierOrder()
	assert.Equal(t, KindFaction, order[0])
	assert.Equal(t, KindStory, order[len(order)-1])
	assert.Len(t, order, 12)
}

func TestClassifyEntity_IsPure(t *testing.T) {
	in := map[string]any{"name": "Vex", "role": "protagonist"}
	first := ClassifyEntity(in)
	second := ClassifyEntity(in)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"name": "Vex", "role": "protagonist"}, in)
}

func TestEntityKindTable(t *testing.T) {
	table, ok := KindObject.Table()
	assert.True(t, ok)
	assert.Equal(t, entity.TableObjects, table)

	_, ok = KindUnknown.Table()
	assert.False(t, ok)
}
