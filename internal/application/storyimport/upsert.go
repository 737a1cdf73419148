package storyimport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/pkg/metrics"
	"novel-graph-api/pkg/tracer"
)

// Outcome 单行写入结果
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

type matchKind int

const (
	matchByID matchKind = iota
	matchByNaturalKey
	matchBySnapshot
	matchByFilter
)

// MatchStrategy 存在性检查方式
type MatchStrategy struct {
	kind     matchKind
	scope    entity.Filter
	snapshot *Snapshot
}

// ByID 按 id 匹配；载荷没有 id 时退回到按自然键匹配（范围取自载荷自身的 story_id / story_world_id）
func ByID() MatchStrategy {
	return MatchStrategy{kind: matchByID}
}

// ByNaturalKey 在 scope 范围内按自然键（忽略大小写）匹配
func ByNaturalKey(scope entity.Filter) MatchStrategy {
	return MatchStrategy{kind: matchByNaturalKey, scope: scope}
}

// BySnapshot 使用阶段开始时的快照匹配，不再查询存储；写入后的行会回写快照
func BySnapshot(s *Snapshot) MatchStrategy {
	return MatchStrategy{kind: matchBySnapshot, snapshot: s}
}

// ByFilter 按等值条件匹配（关联表的外键对）
func ByFilter(filter entity.Filter) MatchStrategy {
	return MatchStrategy{kind: matchByFilter, scope: filter}
}

// UpsertOption 写入选项
type UpsertOption func(*upsertOptions)

type upsertOptions struct {
	defaults entity.Record
}

// WithDefaults 仅在新建时补充的默认值，更新时不会用默认值覆盖已有字段
func WithDefaults(defaults entity.Record) UpsertOption {
	return func(o *upsertOptions) {
		o.defaults = defaults
	}
}

// Engine 插入或更新引擎
type Engine struct {
	store repository.RecordStore
	now   func() time.Time
}

// NewEngine 创建引擎
func NewEngine(store repository.RecordStore) *Engine {
	return &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Store 底层存储
func (e *Engine) Store() repository.RecordStore {
	return e.store
}

// Upsert 存在则按字段差异更新，否则插入
// 差异只包含载荷中存在、非空且与存储值不同的字段；差异为空时不写入
func (e *Engine) Upsert(ctx context.Context, table entity.Table, payload entity.Record, match MatchStrategy, opts ...UpsertOption) (entity.Record, Outcome, error) {
	ctx, span := tracer.Start(ctx, "storyimport.Engine.Upsert")
	defer span.End()

	var o upsertOptions
	for _, opt := range opts {
		opt(&o)
	}

	info, err := tableInfo(table)
	if err != nil {
		return nil, "", err
	}
	row, err := Project(info, payload)
	if err != nil {
		return nil, "", err
	}

	existing, err := e.find(ctx, info, row, match)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to check existing %s: %w", table, err)
	}

	if existing != nil {
		patch := Diff(existing, row)
		if len(patch) == 0 {
			e.observe(table, OutcomeUnchanged)
			return existing, OutcomeUnchanged, nil
		}
		patch["updated_at"] = e.now()
		updated, err := e.store.Update(ctx, table, existing.ID(), patch)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, "", fmt.Errorf("failed to update %s %s: %w", table, existing.ID(), err)
		}
		if match.snapshot != nil {
			match.snapshot.Put(updated)
		}
		e.observe(table, OutcomeUpdated)
		return updated, OutcomeUpdated, nil
	}

	created, err := e.insert(ctx, info, row, o.defaults)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, "", err
	}
	if match.snapshot != nil {
		match.snapshot.Put(created)
	}
	return created, OutcomeCreated, nil
}

// InsertOnce 任一 identity 条件命中已有行时原样返回，否则插入
func (e *Engine) InsertOnce(ctx context.Context, table entity.Table, payload entity.Record, defaults entity.Record, identities ...entity.Filter) (entity.Record, Outcome, error) {
	ctx, span := tracer.Start(ctx, "storyimport.Engine.InsertOnce")
	defer span.End()

	info, err := tableInfo(table)
	if err != nil {
		return nil, "", err
	}
	row, err := Project(info, payload)
	if err != nil {
		return nil, "", err
	}

	for _, identity := range identities {
		rows, err := e.store.Select(ctx, table, identity)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, "", fmt.Errorf("failed to check existing %s: %w", table, err)
		}
		if len(rows) > 0 {
			e.observe(table, OutcomeUnchanged)
			return rows[0], OutcomeUnchanged, nil
		}
	}

	created, err := e.insert(ctx, info, row, defaults)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, "", err
	}
	return created, OutcomeCreated, nil
}

// insert 生成 ID、补充默认值并盖时间戳
func (e *Engine) insert(ctx context.Context, info *entity.TableInfo, row, defaults entity.Record) (entity.Record, error) {
	row = row.Clone()
	if len(defaults) > 0 {
		d, err := Project(info, defaults)
		if err != nil {
			return nil, err
		}
		for k, v := range d {
			if !row.Has(k) {
				row[k] = v
			}
		}
	}
	if row.ID() == "" {
		row["id"] = uuid.NewString()
	}
	now := e.now()
	row["created_at"] = now
	row["updated_at"] = now

	created, err := e.store.Insert(ctx, info.Name, row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", info.Name, err)
	}
	e.observe(info.Name, OutcomeCreated)
	return created, nil
}

// find 按匹配策略查找已有行，未找到返回 nil
func (e *Engine) find(ctx context.Context, info *entity.TableInfo, row entity.Record, match MatchStrategy) (entity.Record, error) {
	switch match.kind {
	case matchByID:
		if id := row.ID(); id != "" {
			return e.first(ctx, info.Name, entity.Filter{"id": id})
		}
		return e.findByNaturalKey(ctx, info, row, rowScope(info, row))

	case matchByNaturalKey:
		return e.findByNaturalKey(ctx, info, row, match.scope)

	case matchBySnapshot:
		if id := row.ID(); id != "" {
			if existing, ok := match.snapshot.ByID(id); ok {
				return existing, nil
			}
			// 快照只覆盖本故事的行，显式 ID 可能指向世界级或其他故事的行
			return e.first(ctx, info.Name, entity.Filter{"id": id})
		}
		if info.NaturalKey == "" {
			return nil, nil
		}
		if existing, ok := match.snapshot.ByName(row.String(info.NaturalKey)); ok {
			return existing, nil
		}
		return nil, nil

	case matchByFilter:
		return e.first(ctx, info.Name, match.scope)
	}
	return nil, fmt.Errorf("unsupported match strategy")
}

func (e *Engine) findByNaturalKey(ctx context.Context, info *entity.TableInfo, row entity.Record, scope entity.Filter) (entity.Record, error) {
	if info.NaturalKey == "" {
		return nil, nil
	}
	key := normalizeName(row.String(info.NaturalKey))
	if key == "" {
		return nil, nil
	}
	rows, err := e.store.Select(ctx, info.Name, scope)
	if err != nil {
		return nil, err
	}
	var found entity.Record
	for _, r := range rows {
		if normalizeName(r.String(info.NaturalKey)) == key {
			found = r
		}
	}
	return found, nil
}

func (e *Engine) first(ctx context.Context, table entity.Table, filter entity.Filter) (entity.Record, error) {
	rows, err := e.store.Select(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (e *Engine) observe(table entity.Table, outcome Outcome) {
	metrics.ImportedEntitiesTotal.WithLabelValues(string(table), string(outcome)).Inc()
}

// Project 将载荷投影到表的列上
// 别名字段改写为列名，未知字段与时间戳被丢弃，字符串去除首尾空白，空值不保留
func Project(info *entity.TableInfo, payload entity.Record) (entity.Record, error) {
	out := make(entity.Record, len(payload))
	aliases := make([]string, 0, len(info.Aliases))
	for alias := range info.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		col := info.Aliases[alias]
		if v, ok := payload[alias]; ok && !payload.Has(col) && !out.Has(col) {
			if err := projectValue(info, out, col, v); err != nil {
				return nil, err
			}
		}
	}
	for k, v := range payload {
		if k == "created_at" || k == "updated_at" {
			continue
		}
		if !info.HasColumn(k) {
			continue
		}
		if err := projectValue(info, out, k, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func projectValue(info *entity.TableInfo, out entity.Record, name string, v any) error {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	if isEmpty(v) {
		return nil
	}
	col, _ := info.Column(name)
	bound, err := entity.Coerce(col, v)
	if err != nil {
		return err
	}
	out[name] = bound
	return nil
}

// Diff 计算需要更新的字段
func Diff(existing, row entity.Record) entity.Record {
	patch := make(entity.Record)
	for k, v := range row {
		if k == "id" || k == "created_at" || k == "updated_at" || isEmpty(v) {
			continue
		}
		if !sameValue(existing[k], v) {
			patch[k] = v
		}
	}
	return patch
}

// sameValue 数值按数值比较，时间按时刻比较，其余按字符串比较
func sameValue(stored, incoming any) bool {
	if stored == nil {
		return incoming == nil
	}
	if a, ok := stored.(time.Time); ok {
		if b, ok := incoming.(time.Time); ok {
			return a.Equal(b)
		}
	}
	if a, ok := entity.ToFloat64(stored); ok {
		if b, ok := entity.ToFloat64(incoming); ok {
			return a == b
		}
	}
	return fmt.Sprint(stored) == fmt.Sprint(incoming)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case entity.Record:
		return len(t) == 0
	}
	return false
}

// rowScope 由载荷自身的归属字段构造匹配范围
func rowScope(info *entity.TableInfo, row entity.Record) entity.Filter {
	if id := row.String("story_id"); id != "" && info.HasColumn("story_id") {
		return entity.Filter{"story_id": id}
	}
	if id := row.String("story_world_id"); id != "" && info.HasColumn("story_world_id") {
		return entity.Filter{"story_world_id": id}
	}
	return nil
}

func tableInfo(table entity.Table) (*entity.TableInfo, error) {
	info, ok := entity.Lookup(string(table))
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnknownTable, table)
	}
	return info, nil
}
