package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
)

// RecordStore 通用行存储实现
type RecordStore struct {
	client *Client
}

// NewRecordStore 创建行存储
func NewRecordStore(client *Client) *RecordStore {
	return &RecordStore{client: client}
}

// Select 按等值条件查询
func (r *RecordStore) Select(ctx context.Context, table entity.Table, filter entity.Filter) ([]entity.Record, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecordStore.Select")
	defer span.End()

	info, err := lookup(table)
	if err != nil {
		return nil, err
	}
	bound, err := info.Bind(entity.Record(filter))
	if err != nil {
		return nil, err
	}

	db := r.client.conn(ctx)
	query := db.Table(string(table))
	if len(bound) > 0 {
		query = query.Where(map[string]any(bound))
	}

	var rows []map[string]any
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to select %s: %w", table, err)
	}

	out := make([]entity.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, compact(row))
	}
	return out, nil
}

// Insert 插入一行
func (r *RecordStore) Insert(ctx context.Context, table entity.Table, row entity.Record) (entity.Record, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecordStore.Insert")
	defer span.End()

	info, err := lookup(table)
	if err != nil {
		return nil, err
	}
	bound, err := info.Bind(row)
	if err != nil {
		return nil, err
	}
	if bound.ID() == "" {
		bound["id"] = uuid.NewString()
	}
	if bound["created_at"] == nil {
		bound["created_at"] = time.Now().UTC()
	}

	db := r.client.conn(ctx)
	if err := db.Table(string(table)).Create(map[string]any(bound)).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return r.get(ctx, table, bound.ID())
}

// Update 按 ID 更新部分字段
func (r *RecordStore) Update(ctx context.Context, table entity.Table, id string, patch entity.Record) (entity.Record, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecordStore.Update")
	defer span.End()

	info, err := lookup(table)
	if err != nil {
		return nil, err
	}
	bound, err := info.Bind(patch)
	if err != nil {
		return nil, err
	}
	delete(bound, "id")
	if len(bound) == 0 {
		return r.get(ctx, table, id)
	}

	db := r.client.conn(ctx)
	result := db.Table(string(table)).Where("id = ?", id).Updates(map[string]any(bound))
	if result.Error != nil {
		span.RecordError(result.Error)
		return nil, fmt.Errorf("failed to update %s: %w", table, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrRecordNotFound
	}
	return r.get(ctx, table, id)
}

// Delete 按 ID 删除
func (r *RecordStore) Delete(ctx context.Context, table entity.Table, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.RecordStore.Delete")
	defer span.End()

	if _, err := lookup(table); err != nil {
		return err
	}

	db := r.client.conn(ctx)
	result := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", pq.QuoteIdentifier(string(table))), id)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to delete from %s: %w", table, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}

// get 按 ID 读取一行
func (r *RecordStore) get(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	db := r.client.conn(ctx)

	var rows []map[string]any
	if err := db.Table(string(table)).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrRecordNotFound
	}
	return compact(rows[0]), nil
}

func lookup(table entity.Table) (*entity.TableInfo, error) {
	info, ok := entity.Lookup(string(table))
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnknownTable, table)
	}
	return info, nil
}

// compact 去掉空值列，与 SQLite 后端行为一致
func compact(row map[string]any) entity.Record {
	rec := make(entity.Record, len(row))
	for k, v := range row {
		if v == nil {
			continue
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[k] = v
	}
	return rec
}
