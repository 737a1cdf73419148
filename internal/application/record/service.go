// Package record 提供各表的通用增删改查
package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	apperrors "novel-graph-api/pkg/errors"
	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/tracer"
)

// Store 记录服务依赖的存储能力
type Store interface {
	repository.RecordStore
	repository.Transactor
}

// Service 通用记录服务
type Service struct {
	store Store
	now   func() time.Time
}

// NewService 创建记录服务
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListQuery 列表查询参数
type ListQuery struct {
	Filter     entity.Filter
	Pagination repository.Pagination
}

// DeleteResult 删除结果
type DeleteResult struct {
	ID string `json:"id"`
	// Cascaded 被一并删除的关联行数
	Cascaded int `json:"cascaded"`
	// Detached 被置空引用的实体行数
	Detached int `json:"detached"`
}

// List 按条件分页列出记录
func (s *Service) List(ctx context.Context, table string, q ListQuery) (*repository.PagedResult[entity.Record], error) {
	ctx, span := tracer.Start(ctx, "record.Service.List")
	defer span.End()

	info, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Select(ctx, info.Name, q.Filter)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, translate(err)
	}
	return repository.Page(rows, repository.NewPagination(q.Pagination.Page, q.Pagination.PageSize)), nil
}

// Get 按 ID 获取记录
func (s *Service) Get(ctx context.Context, table, id string) (entity.Record, error) {
	info, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, info.Name, id)
}

// Create 创建记录
func (s *Service) Create(ctx context.Context, table string, row entity.Record) (entity.Record, error) {
	ctx, span := tracer.Start(ctx, "record.Service.Create")
	defer span.End()

	info, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("empty record")
	}
	row = row.Clone()
	if info.NaturalKey != "" && row.String(info.NaturalKey) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("%s is required", info.NaturalKey))
	}
	now := s.now()
	delete(row, "created_at")
	row["updated_at"] = now

	created, err := s.store.Insert(ctx, info.Name, row)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, translate(err)
	}
	logger.Info(ctx, "record created", "table", info.Name, "id", created.ID())
	return created, nil
}

// Update 部分更新记录
func (s *Service) Update(ctx context.Context, table, id string, patch entity.Record) (entity.Record, error) {
	ctx, span := tracer.Start(ctx, "record.Service.Update")
	defer span.End()

	info, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	patch = patch.Clone()
	delete(patch, "id")
	delete(patch, "created_at")
	if len(patch) == 0 {
		return s.get(ctx, info.Name, id)
	}
	patch["updated_at"] = s.now()

	updated, err := s.store.Update(ctx, info.Name, id, patch)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, translate(err)
	}
	return updated, nil
}

// Delete 删除记录
// 在同一事务内删除引用该行的关联行，并将其他实体上指向该行的可空引用置空
func (s *Service) Delete(ctx context.Context, table, id string) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "record.Service.Delete")
	defer span.End()

	info, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	result := &DeleteResult{ID: id}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.get(ctx, info.Name, id); err != nil {
			return err
		}
		for refTable, columns := range entity.ReferencesTo(info.Name) {
			refInfo := entity.MustInfo(refTable)
			for _, col := range columns {
				rows, err := s.store.Select(ctx, refTable, entity.Filter{col: id})
				if err != nil {
					return err
				}
				for _, row := range rows {
					if refTable == info.Name && row.ID() == id {
						continue
					}
					if c, _ := refInfo.Column(col); refInfo.Junction || !c.Nullable {
						if err := s.store.Delete(ctx, refTable, row.ID()); err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
							return err
						}
						result.Cascaded++
						continue
					}
					if _, err := s.store.Update(ctx, refTable, row.ID(), entity.Record{col: nil, "updated_at": s.now()}); err != nil {
						return err
					}
					result.Detached++
				}
			}
		}
		return s.store.Delete(ctx, info.Name, id)
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, translate(err)
	}
	logger.Info(ctx, "record deleted", "table", info.Name, "id", id,
		"cascaded", result.Cascaded, "detached", result.Detached)
	return result, nil
}

func (s *Service) get(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("id is required")
	}
	rows, err := s.store.Select(ctx, table, entity.Filter{"id": id})
	if err != nil {
		return nil, translate(err)
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrRecordNotFound.WithDetail(fmt.Sprintf("%s %s", table, id))
	}
	return rows[0], nil
}

// Tables 返回可访问的表
func Tables() []entity.Table {
	return entity.Tables()
}

func resolveTable(name string) (*entity.TableInfo, error) {
	info, ok := entity.Lookup(strings.TrimSpace(name))
	if !ok {
		return nil, apperrors.ErrUnknownTable.WithDetail(name)
	}
	return info, nil
}

// translate 将存储层错误转换为 AppError
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, repository.ErrRecordNotFound):
		return apperrors.ErrRecordNotFound.WithError(err)
	case errors.Is(err, repository.ErrUnknownTable):
		return apperrors.ErrUnknownTable.WithError(err)
	case errors.Is(err, entity.ErrUnknownColumn), errors.Is(err, entity.ErrInvalidValue):
		return apperrors.ErrInvalidParam.WithDetail(err.Error())
	default:
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "database error")
	}
}
