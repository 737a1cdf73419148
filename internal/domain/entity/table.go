// Package entity 定义领域实体
package entity

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm/schema"
)

// Table 表名
type Table string

const (
	TableStoryWorlds            Table = "story_worlds"
	TableStories                Table = "stories"
	TableCharacters             Table = "characters"
	TableLocations              Table = "locations"
	TableFactions               Table = "factions"
	TableObjects                Table = "objects"
	TableEvents                 Table = "events"
	TableCharacterRelationships Table = "character_relationships"
	TableCharacterEvents        Table = "character_events"
	TablePlotlines              Table = "plotlines"
	TablePlotlineEvents         Table = "plotline_events"
	TablePlotlineCharacters     Table = "plotline_characters"
	TableEventDependencies      Table = "event_dependencies"
	TableScenes                 Table = "scenes"
	TableSceneCharacters        Table = "scene_characters"
	TableStoryQuestions         Table = "story_questions"
)

// ColumnKind 列的存储类别
type ColumnKind string

const (
	ColumnText    ColumnKind = "text"
	ColumnInteger ColumnKind = "integer"
	ColumnReal    ColumnKind = "real"
	ColumnTime    ColumnKind = "time"
)

// Column 列定义
type Column struct {
	Name       string
	Kind       ColumnKind
	PrimaryKey bool
	Nullable   bool
	// Default 建表时的 SQL 默认值表达式（取自 gorm default 标签）
	Default string
}

// Reference 外键引用（用于级联删除关联行）
type Reference struct {
	Column string
	Target Table
}

// TableInfo 表元数据
type TableInfo struct {
	Name Table
	// NaturalKey 用于匹配的自然键列（name/title/question），关联表为空
	NaturalKey string
	// Junction 是否为关联表
	Junction bool
	// Aliases 导入载荷中的别名字段 -> 列名
	Aliases map[string]string
	// References 指向其他表的外键
	References []Reference
	Columns    []Column

	columns map[string]Column
}

// HasColumn 是否包含列
func (t *TableInfo) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column 获取列定义
func (t *TableInfo) Column(name string) (Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// ColumnNames 返回全部列名
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// tableDef 静态表定义
type tableDef struct {
	model      any
	naturalKey string
	junction   bool
	aliases    map[string]string
	references []Reference
}

var tableDefs = map[Table]tableDef{
	TableStoryWorlds: {model: &StoryWorld{}, naturalKey: "name"},
	TableStories: {
		model: &Story{}, naturalKey: "title",
		references: []Reference{{"story_world_id", TableStoryWorlds}},
	},
	TableCharacters: {
		model: &Character{}, naturalKey: "name",
		references: []Reference{{"story_id", TableStories}, {"story_world_id", TableStoryWorlds}},
	},
	TableLocations: {
		model: &Location{}, naturalKey: "name",
		references: []Reference{{"story_id", TableStories}, {"story_world_id", TableStoryWorlds}, {"parent_location_id", TableLocations}},
	},
	TableFactions: {
		model: &Faction{}, naturalKey: "name",
		aliases: map[string]string{"type": "faction_type"},
		references: []Reference{
			{"story_id", TableStories}, {"story_world_id", TableStoryWorlds},
			{"leader_character_id", TableCharacters}, {"headquarters_location_id", TableLocations},
		},
	},
	TableObjects: {
		model: &StoryObject{}, naturalKey: "name",
		aliases: map[string]string{"item_type": "object_type", "type": "object_type"},
		references: []Reference{
			{"story_id", TableStories}, {"story_world_id", TableStoryWorlds},
			{"current_owner", TableCharacters}, {"current_location", TableLocations},
		},
	},
	TableEvents: {
		model: &Event{}, naturalKey: "title",
		references: []Reference{{"story_id", TableStories}},
	},
	TableCharacterRelationships: {
		model: &CharacterRelationship{}, junction: true,
		aliases: map[string]string{"type": "relationship_type"},
		references: []Reference{{"story_id", TableStories}, {"character1_id", TableCharacters}, {"character2_id", TableCharacters}},
	},
	TableCharacterEvents: {
		model: &CharacterEvent{}, junction: true,
		references: []Reference{{"character_id", TableCharacters}, {"event_id", TableEvents}},
	},
	TablePlotlines: {
		model: &Plotline{}, naturalKey: "title",
		references: []Reference{
			{"story_id", TableStories}, {"starting_event_id", TableEvents},
			{"climax_event_id", TableEvents}, {"resolution_event_id", TableEvents},
		},
	},
	TablePlotlineEvents: {
		model: &PlotlineEvent{}, junction: true,
		references: []Reference{{"plotline_id", TablePlotlines}, {"event_id", TableEvents}},
	},
	TablePlotlineCharacters: {
		model: &PlotlineCharacter{}, junction: true,
		references: []Reference{{"plotline_id", TablePlotlines}, {"character_id", TableCharacters}},
	},
	TableEventDependencies: {
		model: &EventDependency{}, junction: true,
		references: []Reference{{"predecessor_event_id", TableEvents}, {"successor_event_id", TableEvents}},
	},
	TableScenes: {
		model: &Scene{}, naturalKey: "title",
		aliases: map[string]string{"type": "scene_type"},
		references: []Reference{{"story_id", TableStories}},
	},
	TableSceneCharacters: {
		model: &SceneCharacter{}, junction: true,
		references: []Reference{{"scene_id", TableScenes}, {"character_id", TableCharacters}},
	},
	TableStoryQuestions: {
		model: &StoryQuestion{}, naturalKey: "question",
		aliases: map[string]string{"story_question": "question"},
		references: []Reference{
			{"story_id", TableStories}, {"origin_scene_id", TableScenes}, {"resolution_scene_id", TableScenes},
		},
	},
}

var (
	registryOnce sync.Once
	registry     map[Table]*TableInfo
	registryErr  error
)

// loadRegistry 通过 GORM schema 解析模型，得到列定义
func loadRegistry() {
	registry = make(map[Table]*TableInfo, len(tableDefs))
	cache := &sync.Map{}
	timeType := reflect.TypeOf(time.Time{})

	for name, def := range tableDefs {
		s, err := schema.Parse(def.model, cache, schema.NamingStrategy{})
		if err != nil {
			registryErr = fmt.Errorf("failed to parse model for %s: %w", name, err)
			return
		}

		info := &TableInfo{
			Name:       name,
			NaturalKey: def.naturalKey,
			Junction:   def.junction,
			Aliases:    def.aliases,
			References: def.references,
			columns:    make(map[string]Column),
		}
		for _, f := range s.Fields {
			if f.DBName == "" {
				continue
			}
			col := Column{
				Name:       f.DBName,
				PrimaryKey: f.PrimaryKey,
				Nullable:   !f.NotNull && !f.PrimaryKey,
				Default:    f.DefaultValue,
			}
			switch t := f.IndirectFieldType; {
			case t == timeType:
				col.Kind = ColumnTime
			case t.Kind() >= reflect.Int && t.Kind() <= reflect.Uint64, t.Kind() == reflect.Bool:
				col.Kind = ColumnInteger
			case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
				col.Kind = ColumnReal
			default:
				col.Kind = ColumnText
			}
			info.Columns = append(info.Columns, col)
			info.columns[col.Name] = col
		}
		registry[name] = info
	}
}

// Lookup 按名称查找表元数据
func Lookup(name string) (*TableInfo, bool) {
	registryOnce.Do(loadRegistry)
	if registryErr != nil {
		return nil, false
	}
	info, ok := registry[Table(name)]
	return info, ok
}

// MustInfo 获取表元数据，表未注册时 panic
func MustInfo(t Table) *TableInfo {
	info, ok := Lookup(string(t))
	if !ok {
		if registryErr != nil {
			panic(registryErr)
		}
		panic(fmt.Sprintf("unknown table: %s", t))
	}
	return info
}

// Tables 返回全部表名（按名称排序）
func Tables() []Table {
	out := make([]Table, 0, len(tableDefs))
	for t := range tableDefs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Models 返回全部 GORM 模型（用于 AutoMigrate）
func Models() []any {
	tables := Tables()
	out := make([]any, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableDefs[t].model)
	}
	return out
}

// ReferencesTo 返回所有引用目标表的 (表, 列)
func ReferencesTo(target Table) map[Table][]string {
	out := make(map[Table][]string)
	for _, t := range Tables() {
		for _, ref := range tableDefs[t].references {
			if ref.Target == target {
				out[t] = append(out[t], ref.Column)
			}
		}
	}
	return out
}
