package storyimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/metrics"
	"novel-graph-api/pkg/tracer"
)

// Importer 导入编排器
// 每次调用独立建立名称索引，不共享可变状态；存储由调用方注入
type Importer struct {
	store repository.RecordStore
}

// NewImporter 创建导入编排器
func NewImporter(store repository.RecordStore) *Importer {
	return &Importer{store: store}
}

// stage 编排阶段
type stage struct {
	name string
	exec func(r *run, ctx context.Context) StageResult
}

// stages 固定顺序，不回退
var stages = []stage{
	{StageStoryWorld, (*run).importStoryWorld},
	{StageStory, (*run).importStory},
	{StageCharacters, (*run).importCharacters},
	{StageLocations, (*run).importLocations},
	{StageFactions, (*run).importFactions},
	{StageObjects, (*run).importObjects},
	{StageEvents, (*run).importEvents},
	{StageRelationships, (*run).importRelationships},
	{StagePlotlines, (*run).importPlotlines},
	{StageScenes, (*run).importScenes},
	{StageCharacterEvents, (*run).linkCharacterEvents},
	{StagePlotlineEvents, (*run).linkPlotlineEvents},
	{StagePlotlineCharacters, (*run).linkPlotlineCharacters},
	{StageEventDependencies, (*run).linkEventDependencies},
	{StageSceneCharacters, (*run).linkSceneCharacters},
}

// run 单次导入的状态
type run struct {
	engine  *Engine
	linker  *Linker
	bundle  *Bundle
	storyID string
	worldID string

	// 由实体阶段收集、在关联阶段写入的候选关联行
	pendingCharacterEvents    []entity.Record
	pendingPlotlineEvents     []entity.Record
	pendingPlotlineCharacters []entity.Record
	pendingSceneCharacters    []entity.Record
}

// ImportAnalyzedStory 导入分析后的故事包
// 单条记录失败只跳过该记录；整个集合的准备失败（如查询已有势力失败）终止导入，
// 之前阶段已写入的行不会回滚
func (im *Importer) ImportAnalyzedStory(ctx context.Context, bundle *Bundle) *ImportResult {
	ctx, span := tracer.Start(ctx, "storyimport.ImportAnalyzedStory")
	defer span.End()

	start := time.Now()
	result := newImportResult()
	if bundle == nil {
		bundle = &Bundle{}
	}
	engine := NewEngine(im.store)
	r := &run{engine: engine, linker: NewLinker(engine, ""), bundle: bundle}

	result.Success = true
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			res := newStage(st.name)
			result.record(res.fatal(err))
			result.Success = false
			result.Error = fmt.Sprintf("%s stage failed: %v", st.name, err)
			break
		}

		stageCtx, stageSpan := tracer.Start(ctx, "storyimport.stage."+st.name)
		res := st.exec(r, stageCtx)
		stageSpan.End()

		result.record(res)
		if r.storyID != "" && result.StoryID == "" {
			result.StoryID = r.storyID
			ctx = logger.WithContext(ctx, logger.StoryIDKey, r.storyID)
		}
		if r.worldID != "" {
			result.StoryWorldID = r.worldID
		}

		if res.Status == StageFatal {
			tracer.RecordError(span, res.Err)
			metrics.ImportStageFailures.WithLabelValues(res.Stage).Inc()
			logger.Error(ctx, "import stage failed", res.Err, "stage", res.Stage)
			result.Success = false
			result.Error = fmt.Sprintf("%s stage failed: %s", res.Stage, res.Error)
			break
		}
		if res.Status != StageSkipped {
			logger.Debug(ctx, "import stage finished",
				"stage", res.Stage, "status", res.Status, "count", res.Count, "skipped", res.Skipped)
		}
	}

	status := "success"
	if !result.Success {
		status = "failed"
	}
	metrics.ImportsTotal.WithLabelValues("story", status).Inc()
	metrics.ImportDuration.WithLabelValues("story").Observe(time.Since(start).Seconds())
	logger.Info(ctx, "story import finished",
		"success", result.Success, "warnings", len(result.Warnings))
	return result
}

func (r *run) importStoryWorld(ctx context.Context) StageResult {
	world := r.bundle.StoryWorld
	if len(world) == 0 {
		return skippedStage(StageStoryWorld)
	}
	res := newStage(StageStoryWorld)
	if world.ID() == "" && world.String("name") == "" {
		r.skip(ctx, &res, "invalid", "storyWorld: missing name")
		return res.done()
	}

	saved, _, err := r.engine.Upsert(ctx, entity.TableStoryWorlds, world, matchFor(world, ByNaturalKey(nil)))
	if err != nil {
		r.skip(ctx, &res, "write_failed", "storyWorld: %v", err)
		return res.done()
	}
	r.worldID = saved.ID()
	res.Count = 1
	return res.done()
}

func (r *run) importStory(ctx context.Context) StageResult {
	res := newStage(StageStory)
	story := r.bundle.Story
	if len(story) == 0 {
		return res.fatal(errors.New("story is required"))
	}
	if story.ID() == "" && story.String("title") == "" {
		return res.fatal(errors.New("story title is required"))
	}

	payload := story.Clone()
	if r.worldID != "" && !payload.Has("story_world_id") {
		payload["story_world_id"] = r.worldID
	}
	saved, _, err := r.engine.Upsert(ctx, entity.TableStories, payload,
		matchFor(payload, ByNaturalKey(storyScope(payload.String("story_world_id")))))
	if err != nil {
		return res.fatal(err)
	}
	r.storyID = saved.ID()
	if r.worldID == "" {
		r.worldID = saved.String("story_world_id")
	}
	r.linker = NewLinker(r.engine, r.storyID)
	res.Count = 1
	return res.done()
}

func (r *run) importCharacters(ctx context.Context) StageResult {
	records := r.bundle.Characters
	if len(records) == 0 {
		return skippedStage(StageCharacters)
	}
	res := newStage(StageCharacters)
	snap, err := r.linker.Snapshot(ctx, entity.TableCharacters)
	if err != nil {
		return res.fatal(err)
	}
	r.upsertAll(ctx, &res, entity.TableCharacters, records, snap, nil)
	return res.done()
}

// importLocations 两遍：先写入全部地点，再解析父地点，使父地点可以出现在子地点之后
func (r *run) importLocations(ctx context.Context) StageResult {
	records := r.bundle.Locations
	if len(records) == 0 {
		return skippedStage(StageLocations)
	}
	res := newStage(StageLocations)
	snap, err := r.linker.Snapshot(ctx, entity.TableLocations)
	if err != nil {
		return res.fatal(err)
	}

	parents := make(map[int]string)
	stripped := make([]entity.Record, len(records))
	for i, rec := range records {
		if rec == nil {
			continue
		}
		rec = rec.Clone()
		for _, f := range []string{"parent_location_id", "parent_location", "parent_location_name", "parent"} {
			if v, ok := rec[f]; ok {
				if ref := referenceString(v); ref != "" {
					if _, seen := parents[i]; !seen {
						parents[i] = ref
					}
				}
				delete(rec, f)
			}
		}
		stripped[i] = rec
	}

	var links []ParentLink
	r.upsertAll(ctx, &res, entity.TableLocations, stripped, snap, func(i int, saved, _ entity.Record) {
		if parent, ok := parents[i]; ok {
			links = append(links, ParentLink{LocationID: saved.ID(), Parent: parent})
		}
	})

	_, warnings := r.linker.LinkLocationParents(ctx, links, snap)
	r.warn(ctx, &res, warnings)
	return res.done()
}

func (r *run) importFactions(ctx context.Context) StageResult {
	records := r.bundle.Factions
	if len(records) == 0 {
		return skippedStage(StageFactions)
	}
	res := newStage(StageFactions)
	snap, err := r.linker.Snapshot(ctx, entity.TableFactions)
	if err != nil {
		return res.fatal(err)
	}
	characters, err := r.linker.Snapshot(ctx, entity.TableCharacters)
	if err != nil {
		return res.fatal(err)
	}
	locations, err := r.linker.Snapshot(ctx, entity.TableLocations)
	if err != nil {
		return res.fatal(err)
	}

	linked, warnings := LinkFactionLeaders(records, characters, locations)
	r.warn(ctx, &res, warnings)
	r.upsertAll(ctx, &res, entity.TableFactions, linked, snap, nil)
	return res.done()
}

func (r *run) importObjects(ctx context.Context) StageResult {
	records := r.bundle.Objects
	if len(records) == 0 {
		return skippedStage(StageObjects)
	}
	res := newStage(StageObjects)
	snap, err := r.linker.Snapshot(ctx, entity.TableObjects)
	if err != nil {
		return res.fatal(err)
	}
	characters, err := r.linker.Snapshot(ctx, entity.TableCharacters)
	if err != nil {
		return res.fatal(err)
	}
	locations, err := r.linker.Snapshot(ctx, entity.TableLocations)
	if err != nil {
		return res.fatal(err)
	}

	linked, warnings := LinkObjectReferences(records, characters, locations)
	r.warn(ctx, &res, warnings)
	r.upsertAll(ctx, &res, entity.TableObjects, linked, snap, nil)
	return res.done()
}

// importEvents involved_characters 不落在事件行上，转为角色-事件候选
func (r *run) importEvents(ctx context.Context) StageResult {
	records := r.bundle.Events
	if len(records) == 0 {
		return skippedStage(StageEvents)
	}
	res := newStage(StageEvents)
	snap, err := r.linker.Snapshot(ctx, entity.TableEvents)
	if err != nil {
		return res.fatal(err)
	}

	r.upsertAll(ctx, &res, entity.TableEvents, records, snap, func(_ int, saved, raw entity.Record) {
		r.pendingCharacterEvents = append(r.pendingCharacterEvents,
			pendingLinks(raw["involved_characters"], "event_id", saved.ID(), "character", "character", "name", "character_name")...)
	})
	return res.done()
}

func (r *run) importRelationships(ctx context.Context) StageResult {
	if len(r.bundle.Relationships) == 0 {
		return skippedStage(StageRelationships)
	}
	_, res := r.linker.LinkCharacterRelationships(ctx, r.bundle.Relationships)
	return res
}

// importPlotlines events / characters 列表转为关联候选，起始/高潮/结局事件按标题解析
func (r *run) importPlotlines(ctx context.Context) StageResult {
	records := r.bundle.Plotlines
	if len(records) == 0 {
		return skippedStage(StagePlotlines)
	}
	res := newStage(StagePlotlines)
	snap, err := r.linker.Snapshot(ctx, entity.TablePlotlines)
	if err != nil {
		return res.fatal(err)
	}
	events, err := r.linker.Snapshot(ctx, entity.TableEvents)
	if err != nil {
		return res.fatal(err)
	}

	linked := make([]entity.Record, len(records))
	for i, rec := range records {
		if rec == nil {
			continue
		}
		rec = rec.Clone()
		warnings := resolveReferences(rec,
			reference{fields: []string{"starting_event_id", "starting_event"}, column: "starting_event_id", snap: events},
			reference{fields: []string{"climax_event_id", "climax_event"}, column: "climax_event_id", snap: events},
			reference{fields: []string{"resolution_event_id", "resolution_event"}, column: "resolution_event_id", snap: events},
		)
		for _, w := range warnings {
			r.warn(ctx, &res, []string{fmt.Sprintf("plotline %q: %s", rec.String("title"), w)})
		}
		linked[i] = rec
	}

	r.upsertAll(ctx, &res, entity.TablePlotlines, linked, snap, func(_ int, saved, raw entity.Record) {
		r.pendingPlotlineEvents = append(r.pendingPlotlineEvents,
			pendingLinks(raw["events"], "plotline_id", saved.ID(), "event", "event", "title", "event_title")...)
		r.pendingPlotlineCharacters = append(r.pendingPlotlineCharacters,
			pendingLinks(raw["characters"], "plotline_id", saved.ID(), "character", "character", "name", "character_name")...)
	})
	return res.done()
}

func (r *run) importScenes(ctx context.Context) StageResult {
	records := r.bundle.Scenes
	if len(records) == 0 {
		return skippedStage(StageScenes)
	}
	res := newStage(StageScenes)
	snap, err := r.linker.Snapshot(ctx, entity.TableScenes)
	if err != nil {
		return res.fatal(err)
	}

	r.upsertAll(ctx, &res, entity.TableScenes, records, snap, func(_ int, saved, raw entity.Record) {
		r.pendingSceneCharacters = append(r.pendingSceneCharacters,
			pendingLinks(raw["characters"], "scene_id", saved.ID(), "character", "character", "name", "character_name")...)
	})
	return res.done()
}

func (r *run) linkCharacterEvents(ctx context.Context) StageResult {
	_, res := r.linker.LinkCharacterEvents(ctx, concat(r.bundle.CharacterEvents, r.pendingCharacterEvents))
	return res
}

func (r *run) linkPlotlineEvents(ctx context.Context) StageResult {
	_, res := r.linker.LinkPlotlineEvents(ctx, concat(r.bundle.PlotlineEvents, r.pendingPlotlineEvents))
	return res
}

func (r *run) linkPlotlineCharacters(ctx context.Context) StageResult {
	_, res := r.linker.LinkPlotlineCharacters(ctx, concat(r.bundle.PlotlineCharacters, r.pendingPlotlineCharacters))
	return res
}

func (r *run) linkEventDependencies(ctx context.Context) StageResult {
	_, res := r.linker.LinkEventDependencies(ctx, r.bundle.EventDependencies)
	return res
}

func (r *run) linkSceneCharacters(ctx context.Context) StageResult {
	_, res := r.linker.LinkSceneCharacters(ctx, concat(r.bundle.SceneCharacters, r.pendingSceneCharacters))
	return res
}

// upsertAll 逐条写入实体；单条失败跳过并继续
func (r *run) upsertAll(ctx context.Context, res *StageResult, table entity.Table, records []entity.Record, snap *Snapshot, each func(i int, saved, raw entity.Record)) {
	info, err := tableInfo(table)
	if err != nil {
		r.skip(ctx, res, "invalid", "%s: %v", res.Stage, err)
		return
	}
	for i, rec := range records {
		if rec == nil {
			r.skip(ctx, res, "invalid", "%s[%d]: not an object", res.Stage, i)
			continue
		}
		if rec.ID() == "" && naturalKey(info, rec) == "" {
			r.skip(ctx, res, "invalid", "%s[%d]: missing %s", res.Stage, i, info.NaturalKey)
			continue
		}

		saved, _, err := r.engine.Upsert(ctx, table, r.scoped(info, rec), BySnapshot(snap))
		if err != nil {
			r.skip(ctx, res, "write_failed", "%s[%d] %q: %v", res.Stage, i, naturalKey(info, rec), err)
			continue
		}
		res.Count++
		if each != nil {
			each(i, saved, rec)
		}
	}
}

// scoped 为缺少归属字段的记录补充 story_id / story_world_id
func (r *run) scoped(info *entity.TableInfo, rec entity.Record) entity.Record {
	return withOwnership(info, rec, r.storyID, r.worldID)
}

func withOwnership(info *entity.TableInfo, rec entity.Record, storyID, worldID string) entity.Record {
	out := rec.Clone()
	if storyID != "" && info.HasColumn("story_id") && !out.Has("story_id") {
		out["story_id"] = storyID
	}
	if worldID != "" && info.HasColumn("story_world_id") && !out.Has("story_world_id") {
		out["story_world_id"] = worldID
	}
	return out
}

func (r *run) skip(ctx context.Context, res *StageResult, reason, format string, args ...any) {
	r.linker.skip(ctx, res, reason, format, args...)
}

// warn 引用被丢弃但记录本身仍写入
func (r *run) warn(ctx context.Context, res *StageResult, warnings []string) {
	for _, w := range warnings {
		res.warn("%s", w)
		metrics.ImportSkippedTotal.WithLabelValues(res.Stage, "unresolved_reference").Inc()
		logger.Warn(ctx, "import reference dropped", "stage", res.Stage, "detail", w)
	}
}

// storyScope 故事标题在世界内匹配；没有世界的故事在无世界的故事之间匹配
func storyScope(worldID string) entity.Filter {
	if worldID == "" {
		return entity.Filter{"story_world_id": nil}
	}
	return entity.Filter{"story_world_id": worldID}
}

// matchFor 带 id 的记录按 id 匹配
func matchFor(rec entity.Record, fallback MatchStrategy) MatchStrategy {
	if rec.ID() != "" {
		return ByID()
	}
	return fallback
}

// naturalKey 读取自然键值（含别名）
func naturalKey(info *entity.TableInfo, rec entity.Record) string {
	if info.NaturalKey == "" {
		return ""
	}
	if v := rec.String(info.NaturalKey); v != "" {
		return v
	}
	for alias, col := range info.Aliases {
		if col == info.NaturalKey {
			if v := rec.String(alias); v != "" {
				return v
			}
		}
	}
	return ""
}

// pendingLinks 将嵌套列表转为关联候选
// 元素可以是名称字符串，也可以是携带载荷字段的对象
func pendingLinks(list any, ownerColumn, ownerID, refKey string, nameFields ...string) []entity.Record {
	var items []any
	switch v := list.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []entity.Record:
		for _, rec := range v {
			items = append(items, rec)
		}
	case string:
		items = []any{v}
	default:
		return nil
	}

	out := make([]entity.Record, 0, len(items))
	for _, item := range items {
		var rec entity.Record
		if s, ok := item.(string); ok {
			rec = entity.Record{refKey: s}
		} else if m, ok := entity.AsRecord(item); ok {
			rec = m.Clone()
			if !rec.Has(refKey) {
				if name := m.FirstString(nameFields...); name != "" {
					rec[refKey] = name
				}
			}
		} else {
			continue
		}
		rec[ownerColumn] = ownerID
		out = append(out, rec)
	}
	return out
}

func referenceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func concat(a, b []entity.Record) []entity.Record {
	out := make([]entity.Record, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
