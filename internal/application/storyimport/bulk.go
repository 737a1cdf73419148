package storyimport

import (
	"context"
	"fmt"
	"time"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/metrics"
	"novel-graph-api/pkg/tracer"
)

// bulkRun 单次批量导入的状态
type bulkRun struct {
	engine  *Engine
	storyID string
	worldID string
	result  *BulkResult
}

// ImportEntities 无模式批量导入
// 每条记录（或数组分组）先分类再写入对应的表；世界与故事记录的 ID 会传递给之后缺少归属的记录。
// 单条失败跳过；只有 context 取消会中止
func (im *Importer) ImportEntities(ctx context.Context, records []any, storyID, storyWorldID string) (*BulkResult, error) {
	ctx, span := tracer.Start(ctx, "storyimport.ImportEntities")
	defer span.End()

	start := time.Now()
	counts := make(map[EntityKind]int, len(kindTables))
	for kind := range kindTables {
		counts[kind] = 0
	}
	b := &bulkRun{
		engine:  NewEngine(im.store),
		storyID: storyID,
		worldID: storyWorldID,
		result:  &BulkResult{Counts: counts},
	}

	for i, item := range records {
		if err := ctx.Err(); err != nil {
			tracer.RecordError(span, err)
			metrics.ImportsTotal.WithLabelValues("entities", "failed").Inc()
			return b.finish(), err
		}

		kind := ClassifyEntity(item)
		if kind == KindUnknown {
			b.skip(ctx, "unknown", "records[%d]: unrecognized entity shape", i)
			continue
		}
		for j, rec := range groupRecords(item) {
			if rec == nil {
				b.skip(ctx, "invalid", "records[%d][%d]: not an object", i, j)
				continue
			}
			if err := b.importOne(ctx, kind, rec); err != nil {
				b.skip(ctx, "write_failed", "records[%d][%d] %s: %v", i, j, kind, err)
				continue
			}
			b.result.Counts[kind]++
		}
	}

	metrics.ImportsTotal.WithLabelValues("entities", "success").Inc()
	metrics.ImportDuration.WithLabelValues("entities").Observe(time.Since(start).Seconds())
	logger.Info(ctx, "bulk import finished", "records", len(records), "skipped", b.result.Skipped)
	return b.finish(), nil
}

func (b *bulkRun) finish() *BulkResult {
	b.result.StoryID = b.storyID
	b.result.StoryWorldID = b.worldID
	return b.result
}

func (b *bulkRun) skip(ctx context.Context, reason, format string, args ...any) {
	b.result.skip(format, args...)
	metrics.ImportSkippedTotal.WithLabelValues("bulk", reason).Inc()
	logger.Warn(ctx, "bulk record skipped", "reason", reason, "detail", b.result.Warnings[len(b.result.Warnings)-1])
}

// importOne 按类别写入单条记录
func (b *bulkRun) importOne(ctx context.Context, kind EntityKind, rec entity.Record) error {
	switch kind {
	case KindStoryWorld:
		return b.importWorld(ctx, rec)
	case KindStory:
		return b.importStory(ctx, rec)
	case KindCharacterRelationship:
		return b.importJunction(ctx, characterRelationshipJunction, rec)
	case KindEventDependency:
		return b.importJunction(ctx, eventDependencyJunction, rec)
	}

	table, ok := kind.Table()
	if !ok {
		return fmt.Errorf("no table for kind %s", kind)
	}
	info, err := tableInfo(table)
	if err != nil {
		return err
	}
	if rec.ID() == "" && naturalKey(info, rec) == "" {
		return fmt.Errorf("missing %s", info.NaturalKey)
	}
	payload := withOwnership(info, rec, b.storyID, b.worldID)
	if kind == KindObject || kind == KindFaction {
		if payload, err = b.linkNames(ctx, kind, payload); err != nil {
			return err
		}
	}
	_, _, err = b.engine.Upsert(ctx, table, payload, matchFor(payload, ByNaturalKey(rowScope(info, payload))))
	return err
}

// linkNames 把物品与势力上按名称给出的角色、地点引用解析为 ID；未解析的引用丢弃并记为警告
func (b *bulkRun) linkNames(ctx context.Context, kind EntityKind, rec entity.Record) (entity.Record, error) {
	linker := NewLinker(b.engine, b.storyID)
	characters, err := linker.Snapshot(ctx, entity.TableCharacters)
	if err != nil {
		return nil, err
	}
	locations, err := linker.Snapshot(ctx, entity.TableLocations)
	if err != nil {
		return nil, err
	}

	var (
		linked   []entity.Record
		warnings []string
	)
	if kind == KindFaction {
		linked, warnings = LinkFactionLeaders([]entity.Record{rec}, characters, locations)
	} else {
		linked, warnings = LinkObjectReferences([]entity.Record{rec}, characters, locations)
	}
	for _, w := range warnings {
		b.result.Warnings = append(b.result.Warnings, w)
		metrics.ImportSkippedTotal.WithLabelValues("bulk", "unresolved_reference").Inc()
		logger.Warn(ctx, "import reference dropped", "kind", kind, "detail", w)
	}
	return linked[0], nil
}

// importWorld 世界记录形如 {"storyWorld": {...}}，嵌套值也可以只是名称
func (b *bulkRun) importWorld(ctx context.Context, rec entity.Record) error {
	var payload entity.Record
	for _, key := range []string{"storyWorld", "story_world"} {
		if !rec.Has(key) {
			continue
		}
		if nested, ok := entity.AsRecord(rec[key]); ok {
			payload = nested
		} else if name := rec.String(key); name != "" {
			payload = entity.Record{"name": name}
		}
		break
	}
	if payload == nil || (payload.ID() == "" && payload.String("name") == "") {
		return fmt.Errorf("missing story world name")
	}

	saved, _, err := b.engine.Upsert(ctx, entity.TableStoryWorlds, payload, matchFor(payload, ByNaturalKey(nil)))
	if err != nil {
		return err
	}
	b.worldID = saved.ID()
	return nil
}

func (b *bulkRun) importStory(ctx context.Context, rec entity.Record) error {
	payload := rec.Clone()
	if b.worldID != "" && !payload.Has("story_world_id") {
		payload["story_world_id"] = b.worldID
	}
	saved, _, err := b.engine.Upsert(ctx, entity.TableStories, payload,
		matchFor(payload, ByNaturalKey(storyScope(payload.String("story_world_id")))))
	if err != nil {
		return err
	}
	b.storyID = saved.ID()
	return nil
}

// importJunction 关联记录直接携带两端 ID，写入前确认两端都存在
func (b *bulkRun) importJunction(ctx context.Context, j junction, rec entity.Record) error {
	leftID := rec.String(j.left.column)
	rightID := rec.String(j.right.column)
	for _, end := range []struct {
		ep endpoint
		id string
	}{{j.left, leftID}, {j.right, rightID}} {
		if end.id == "" {
			return fmt.Errorf("missing %s", end.ep.column)
		}
		rows, err := b.engine.Store().Select(ctx, end.ep.table, entity.Filter{"id": end.id})
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", end.ep.column, err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("%s %q does not exist", end.ep.column, end.id)
		}
	}
	if leftID == rightID {
		return fmt.Errorf("%s and %s are the same record", j.left.column, j.right.column)
	}
	_, err := writeJunction(ctx, b.engine, j, rec, leftID, rightID, b.storyID)
	return err
}

// groupRecords 单个对象视为一组；数组按元素展开，非对象元素为 nil
func groupRecords(item any) []entity.Record {
	switch v := item.(type) {
	case []any:
		out := make([]entity.Record, len(v))
		for i, el := range v {
			if rec, ok := entity.AsRecord(el); ok {
				out[i] = rec
			}
		}
		return out
	case []entity.Record:
		return v
	case []map[string]any:
		out := make([]entity.Record, len(v))
		for i, el := range v {
			out[i] = entity.Record(el)
		}
		return out
	}
	if rec, ok := entity.AsRecord(item); ok {
		return []entity.Record{rec}
	}
	return []entity.Record{nil}
}
