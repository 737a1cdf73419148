package storyimport

import (
	"context"
	"fmt"
	"strings"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/metrics"
)

// Linker 把名称引用解析为外键并写入关联行
type Linker struct {
	engine  *Engine
	storyID string
}

// NewLinker 创建链接器，storyID 为空时在全局范围内解析名称
func NewLinker(engine *Engine, storyID string) *Linker {
	return &Linker{engine: engine, storyID: storyID}
}

// Snapshot 查询表在当前故事范围内的全部行
func (l *Linker) Snapshot(ctx context.Context, table entity.Table) (*Snapshot, error) {
	info, err := tableInfo(table)
	if err != nil {
		return nil, err
	}
	var scope entity.Filter
	if l.storyID != "" && info.HasColumn("story_id") {
		scope = entity.Filter{"story_id": l.storyID}
	}
	rows, err := l.engine.Store().Select(ctx, table, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing %s: %w", table, err)
	}
	return NewSnapshot(rows, info.NaturalKey), nil
}

// endpoint 关联行的一端
type endpoint struct {
	column string
	table  entity.Table
	keys   []string
}

// junction 关联表的链接规则
type junction struct {
	stage     string
	table     entity.Table
	left      endpoint
	right     endpoint
	payload   []string
	defaults  entity.Record
	update    bool
	unordered bool
	prepare   func(raw, row entity.Record)
}

var (
	characterRelationshipJunction = junction{
		stage: StageRelationships,
		table: entity.TableCharacterRelationships,
		left:  endpoint{"character1_id", entity.TableCharacters, []string{"character1", "character1_name", "source"}},
		right: endpoint{"character2_id", entity.TableCharacters, []string{"character2", "character2_name", "target"}},
		payload: []string{"intensity", "description"},
		defaults: entity.Record{
			"relationship_type": string(entity.DefaultRelationshipType),
			"intensity":         entity.DefaultRelationshipIntensity,
		},
		unordered: true,
		prepare: func(raw, row entity.Record) {
			row["relationship_type"] = string(entity.NormalizeRelationshipType(raw.FirstString("relationship_type", "type")))
		},
	}

	characterEventJunction = junction{
		stage:   StageCharacterEvents,
		table:   entity.TableCharacterEvents,
		left:    endpoint{"character_id", entity.TableCharacters, []string{"character", "character_name"}},
		right:   endpoint{"event_id", entity.TableEvents, []string{"event", "event_title"}},
		payload: []string{"importance", "experience_type", "character_sequence_number"},
		defaults: entity.Record{
			"importance":                entity.DefaultCharacterEventImportance,
			"experience_type":           entity.DefaultExperienceType,
			"character_sequence_number": entity.DefaultCharacterSequenceNumber,
		},
		update: true,
	}

	plotlineEventJunction = junction{
		stage: StagePlotlineEvents,
		table: entity.TablePlotlineEvents,
		left:  endpoint{"plotline_id", entity.TablePlotlines, []string{"plotline", "plotline_title"}},
		right: endpoint{"event_id", entity.TableEvents, []string{"event", "event_title"}},
	}

	plotlineCharacterJunction = junction{
		stage: StagePlotlineCharacters,
		table: entity.TablePlotlineCharacters,
		left:  endpoint{"plotline_id", entity.TablePlotlines, []string{"plotline", "plotline_title"}},
		right: endpoint{"character_id", entity.TableCharacters, []string{"character", "character_name"}},
	}

	eventDependencyJunction = junction{
		stage:   StageEventDependencies,
		table:   entity.TableEventDependencies,
		left:    endpoint{"predecessor_event_id", entity.TableEvents, []string{"predecessor", "predecessor_event", "from"}},
		right:   endpoint{"successor_event_id", entity.TableEvents, []string{"successor", "successor_event", "to"}},
		payload: []string{"dependency_type", "strength", "description"},
		defaults: entity.Record{
			"dependency_type": entity.DefaultDependencyType,
			"strength":        entity.DefaultDependencyStrength,
		},
		update: true,
	}

	sceneCharacterJunction = junction{
		stage:    StageSceneCharacters,
		table:    entity.TableSceneCharacters,
		left:     endpoint{"scene_id", entity.TableScenes, []string{"scene", "scene_title"}},
		right:    endpoint{"character_id", entity.TableCharacters, []string{"character", "character_name"}},
		payload:  []string{"importance"},
		defaults: entity.Record{"importance": entity.DefaultSceneCharacterImportance},
	}
)

// LinkCharacterRelationships 按无序角色对写入关系，同一对（任一方向）只写一次
func (l *Linker) LinkCharacterRelationships(ctx context.Context, records []entity.Record) ([]entity.Record, StageResult) {
	return l.link(ctx, characterRelationshipJunction, records)
}

// LinkCharacterEvents 写入角色-事件关联，已存在时更新载荷字段
func (l *Linker) LinkCharacterEvents(ctx context.Context, records []entity.Record) ([]entity.Record, StageResult) {
	return l.link(ctx, characterEventJunction, records)
}

// LinkPlotlineEvents 写入情节线-事件关联（只插入一次）
func (l *Linker) LinkPlotlineEvents(ctx context.Context, records []entity.Record) ([]entity.Record, StageResult) {
	return l.link(ctx, plotlineEventJunction, records)
}

// LinkPlotlineCharacters 写入情节线-角色关联（只插入一次）
func (l *Linker) LinkPlotlineCharacters(ctx context.Context, records []entity.Record) ([]entity.Record, StageResult) {
	return l.link(ctx, plotlineCharacterJunction, records)
}

// LinkEventDependencies 写入事件依赖边，已存在时更新载荷字段
// 不检测环
func (l *Linker) LinkEventDependencies(ctx context.Context, records []entity.Record) ([]entity.Record, StageResult) {
	return l.link(ctx, eventDependencyJunction, records)
}

// LinkSceneCharacters 写入场景-角色关联（只插入一次）
func (l *Linker) LinkSceneCharacters(ctx context.Context, records []entity.Record) ([]entity.Record, StageResult) {
	return l.link(ctx, sceneCharacterJunction, records)
}

// link 关联表的通用流程：建两端索引、解析、丢弃无法解析的候选、按关联类型写入
func (l *Linker) link(ctx context.Context, j junction, records []entity.Record) ([]entity.Record, StageResult) {
	if len(records) == 0 {
		return nil, skippedStage(j.stage)
	}
	res := newStage(j.stage)

	leftSnap, err := l.Snapshot(ctx, j.left.table)
	if err != nil {
		return nil, res.fatal(err)
	}
	rightSnap := leftSnap
	if j.right.table != j.left.table {
		if rightSnap, err = l.Snapshot(ctx, j.right.table); err != nil {
			return nil, res.fatal(err)
		}
	}

	out := make([]entity.Record, 0, len(records))
	for i, raw := range records {
		if raw == nil {
			l.skip(ctx, &res, "invalid", "%s[%d]: not an object", j.stage, i)
			continue
		}
		leftID, leftRef, ok := resolveEndpoint(raw, j.left, leftSnap)
		if !ok {
			l.skipUnresolved(ctx, &res, j, i, j.left, leftRef)
			continue
		}
		rightID, rightRef, ok := resolveEndpoint(raw, j.right, rightSnap)
		if !ok {
			l.skipUnresolved(ctx, &res, j, i, j.right, rightRef)
			continue
		}
		if leftID == rightID && j.left.table == j.right.table {
			l.skip(ctx, &res, "self_reference", "%s[%d]: %s and %s are the same record", j.stage, i, j.left.column, j.right.column)
			continue
		}

		saved, err := writeJunction(ctx, l.engine, j, raw, leftID, rightID, l.storyID)
		if err != nil {
			l.skip(ctx, &res, "write_failed", "%s[%d]: %v", j.stage, i, err)
			continue
		}
		out = append(out, saved)
		res.Count++
	}
	return out, res.done()
}

// writeJunction 按关联类型写入一行：载荷型关联就地更新，其余只插入一次
func writeJunction(ctx context.Context, e *Engine, j junction, raw entity.Record, leftID, rightID, storyID string) (entity.Record, error) {
	row := entity.Record{j.left.column: leftID, j.right.column: rightID}
	for _, k := range j.payload {
		if raw.Has(k) {
			row[k] = raw[k]
		}
	}
	if j.prepare != nil {
		j.prepare(raw, row)
	}
	if info, err := tableInfo(j.table); err == nil && info.HasColumn("story_id") {
		if raw.Has("story_id") {
			row["story_id"] = raw["story_id"]
		} else if storyID != "" {
			row["story_id"] = storyID
		}
	}

	identity := entity.Filter{j.left.column: leftID, j.right.column: rightID}
	if j.update {
		saved, _, err := e.Upsert(ctx, j.table, row, ByFilter(identity), WithDefaults(j.defaults))
		return saved, err
	}
	identities := []entity.Filter{identity}
	if j.unordered {
		identities = append(identities, entity.Filter{j.left.column: rightID, j.right.column: leftID})
	}
	saved, _, err := e.InsertOnce(ctx, j.table, row, j.defaults, identities...)
	return saved, err
}

// resolveEndpoint 解析一端的 ID
// 显式的 *_id 列优先（必须指向已存在的行，也可以是名称），否则按名称键解析
func resolveEndpoint(raw entity.Record, ep endpoint, snap *Snapshot) (id, ref string, ok bool) {
	if raw.Has(ep.column) {
		ref = strings.TrimSpace(fmt.Sprint(raw[ep.column]))
	} else {
		ref = raw.FirstString(ep.keys...)
	}
	if ref == "" {
		return "", "", false
	}
	id, ok = snap.Resolve(ref)
	return id, ref, ok
}

func (l *Linker) skipUnresolved(ctx context.Context, res *StageResult, j junction, i int, ep endpoint, ref string) {
	if ref == "" {
		l.skip(ctx, res, "missing_reference", "%s[%d]: missing %s reference", j.stage, i, ep.column)
		return
	}
	l.skip(ctx, res, "unresolved_reference", "%s[%d]: unresolved %s %q", j.stage, i, ep.column, ref)
}

func (l *Linker) skip(ctx context.Context, res *StageResult, reason, format string, args ...any) {
	res.skip(format, args...)
	metrics.ImportSkippedTotal.WithLabelValues(res.Stage, reason).Inc()
	logger.Warn(ctx, "import record skipped", "stage", res.Stage, "reason", reason, "detail", res.Warnings[len(res.Warnings)-1])
}

// reference 双模引用字段：字符串按名称解析，非字符串视为 ID 原样透传
type reference struct {
	fields []string
	column string
	snap   *Snapshot
}

// resolveReferences 就地解析记录上的引用字段，返回警告
// 未解析的字符串被丢弃；已显式给出的 *_id 列保持不变
func resolveReferences(rec entity.Record, refs ...reference) []string {
	var warnings []string
	for _, ref := range refs {
		var (
			value   any
			present bool
		)
		for _, f := range ref.fields {
			if rec.Has(f) {
				value, present = rec[f], true
				break
			}
		}
		for _, f := range ref.fields {
			if f != ref.column {
				delete(rec, f)
			}
		}
		if !present || ref.snap == nil {
			continue
		}

		s, isString := value.(string)
		if !isString {
			rec[ref.column] = value
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			delete(rec, ref.column)
			continue
		}
		if id, ok := ref.snap.Resolve(s); ok {
			rec[ref.column] = id
			continue
		}
		delete(rec, ref.column)
		warnings = append(warnings, fmt.Sprintf("unresolved %s %q", ref.column, s))
	}
	return warnings
}

// LinkFactionLeaders 将势力的首领（以及总部）名称解析为 ID
func LinkFactionLeaders(factions []entity.Record, characters, locations *Snapshot) ([]entity.Record, []string) {
	out := make([]entity.Record, 0, len(factions))
	var warnings []string
	for _, f := range factions {
		if f == nil {
			out = append(out, nil)
			continue
		}
		rec := f.Clone()
		w := resolveReferences(rec,
			reference{fields: []string{"leader_character_id", "leader", "leader_name"}, column: "leader_character_id", snap: characters},
			reference{fields: []string{"headquarters_location_id", "headquarters", "headquarters_location"}, column: "headquarters_location_id", snap: locations},
		)
		for _, msg := range w {
			warnings = append(warnings, fmt.Sprintf("faction %q: %s", rec.String("name"), msg))
		}
		out = append(out, rec)
	}
	return out, warnings
}

// LinkObjectReferences 将物品的持有者与所在地名称解析为 ID
func LinkObjectReferences(objects []entity.Record, characters, locations *Snapshot) ([]entity.Record, []string) {
	out := make([]entity.Record, 0, len(objects))
	var warnings []string
	for _, o := range objects {
		if o == nil {
			out = append(out, nil)
			continue
		}
		rec := o.Clone()
		w := resolveReferences(rec,
			reference{fields: []string{"current_owner", "owner"}, column: "current_owner", snap: characters},
			reference{fields: []string{"current_location", "location"}, column: "current_location", snap: locations},
		)
		for _, msg := range w {
			warnings = append(warnings, fmt.Sprintf("object %q: %s", rec.String("name"), msg))
		}
		out = append(out, rec)
	}
	return out, warnings
}

// ParentLink 待设置父地点的地点
type ParentLink struct {
	LocationID string
	Parent     string
}

// LinkLocationParents 第二遍：为本批次地点设置 parent_location_id，拒绝自引用
func (l *Linker) LinkLocationParents(ctx context.Context, links []ParentLink, locations *Snapshot) (int, []string) {
	var (
		linked   int
		warnings []string
	)
	for _, link := range links {
		parentID, ok := locations.Resolve(link.Parent)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("location %s: unresolved parent %q", link.LocationID, link.Parent))
			continue
		}
		if parentID == link.LocationID {
			warnings = append(warnings, fmt.Sprintf("location %s: refusing self parent", link.LocationID))
			continue
		}
		_, _, err := l.engine.Upsert(ctx, entity.TableLocations,
			entity.Record{"id": link.LocationID, "parent_location_id": parentID}, BySnapshot(locations))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("location %s: %v", link.LocationID, err))
			continue
		}
		linked++
	}
	return linked, warnings
}
