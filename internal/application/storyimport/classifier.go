package storyimport

import (
	"strings"

	"novel-graph-api/internal/domain/entity"
)

// EntityKind 实体类别
type EntityKind string

const (
	KindFaction               EntityKind = "faction"
	KindLocation              EntityKind = "location"
	KindStoryQuestion         EntityKind = "story_question"
	KindScene                 EntityKind = "scene"
	KindCharacter             EntityKind = "character"
	KindObject                EntityKind = "object"
	KindEvent                 EntityKind = "event"
	KindPlotline              EntityKind = "plotline"
	KindCharacterRelationship EntityKind = "character_relationship"
	KindEventDependency       EntityKind = "event_dependency"
	KindStoryWorld            EntityKind = "story_world"
	KindStory                 EntityKind = "story"
	KindUnknown               EntityKind = "unknown"
)

var kindTables = map[EntityKind]entity.Table{
	KindFaction:               entity.TableFactions,
	KindLocation:              entity.TableLocations,
	KindStoryQuestion:         entity.TableStoryQuestions,
	KindScene:                 entity.TableScenes,
	KindCharacter:             entity.TableCharacters,
	KindObject:                entity.TableObjects,
	KindEvent:                 entity.TableEvents,
	KindPlotline:              entity.TablePlotlines,
	KindCharacterRelationship: entity.TableCharacterRelationships,
	KindEventDependency:       entity.TableEventDependencies,
	KindStoryWorld:            entity.TableStoryWorlds,
	KindStory:                 entity.TableStories,
}

// Table 类别对应的表
func (k EntityKind) Table() (entity.Table, bool) {
	t, ok := kindTables[k]
	return t, ok
}

// classifierRule 一条分类规则
type classifierRule struct {
	kind  EntityKind
	match func(r entity.Record) bool
}

// classifierRules 按优先级排列，字段集合有重叠（如 type 同时出现在场景与物品上），先命中者胜
var classifierRules = []classifierRule{
	{KindFaction, func(r entity.Record) bool {
		return r.Has("faction_type") ||
			(r.Has("type") && r.HasAny("headquarters_location_id", "ideology", "goals"))
	}},
	{KindLocation, func(r entity.Record) bool {
		return r.Has("location_type") || r.HasAny("parent_location_id", "map_coordinates", "climate")
	}},
	{KindStoryQuestion, func(r entity.Record) bool {
		return r.HasAny("story_question", "question") &&
			(r.HasAny("resolution_scene_id", "origin_scene_id") || valueIn(r, "status", "open", "resolved", "abandoned"))
	}},
	{KindScene, func(r entity.Record) bool {
		return valueIn(r, "type", "scene", "chapter", "beat") || valueIn(r, "status", "draft", "revised")
	}},
	{KindCharacter, func(r entity.Record) bool {
		return valueIn(r, "role", "protagonist", "antagonist", "supporting") || r.HasAny("personality", "motivation")
	}},
	{KindObject, func(r entity.Record) bool {
		return r.HasAny("object_type", "item_type") ||
			(r.Has("significance") && r.HasAny("current_location", "current_owner"))
	}},
	{KindEvent, func(r entity.Record) bool {
		return r.Has("sequence_number") && r.Has("chronological_time")
	}},
	{KindPlotline, func(r entity.Record) bool {
		return r.Has("plotline_type") || r.HasAny("starting_event_id", "climax_event_id", "resolution_event_id")
	}},
	{KindCharacterRelationship, func(r entity.Record) bool {
		return r.Has("character1_id") && r.Has("character2_id") && r.Has("relationship_type")
	}},
	{KindEventDependency, func(r entity.Record) bool {
		return r.Has("predecessor_event_id") && r.Has("successor_event_id")
	}},
	{KindStoryWorld, func(r entity.Record) bool {
		return r.HasAny("storyWorld", "story_world")
	}},
	{KindStory, func(r entity.Record) bool {
		return r.Has("title") && r.Has("story_type")
	}},
}

// ClassifierOrder 返回规则优先级顺序
func ClassifierOrder() []EntityKind {
	out := make([]EntityKind, 0, len(classifierRules))
	for _, rule := range classifierRules {
		out = append(out, rule.kind)
	}
	return out
}

// ClassifyEntity 根据字段形态推断实体类别
// 数组按首元素分类，空数组与非对象返回 unknown
func ClassifyEntity(v any) EntityKind {
	if first, ok := firstElement(v); ok {
		v = first
	}
	rec, ok := entity.AsRecord(v)
	if !ok || len(rec) == 0 {
		return KindUnknown
	}
	for _, rule := range classifierRules {
		if rule.match(rec) {
			return rule.kind
		}
	}
	return KindUnknown
}

// firstElement 取数组首元素；空数组返回 nil
func firstElement(v any) (any, bool) {
	switch arr := v.(type) {
	case []any:
		if len(arr) == 0 {
			return nil, true
		}
		return arr[0], true
	case []entity.Record:
		if len(arr) == 0 {
			return nil, true
		}
		return arr[0], true
	case []map[string]any:
		if len(arr) == 0 {
			return nil, true
		}
		return arr[0], true
	}
	return nil, false
}

// valueIn 字段值（忽略大小写与首尾空白）是否属于候选集合
func valueIn(r entity.Record, key string, candidates ...string) bool {
	s, ok := r[key].(string)
	if !ok {
		return false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
