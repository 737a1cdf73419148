// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"

	"novel-graph-api/internal/domain/entity"
)

var (
	// ErrRecordNotFound 更新或删除的行不存在
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnknownTable 表未注册
	ErrUnknownTable = errors.New("unknown table")
)

// RecordStore 通用行存储接口
// 导入流程只依赖这四个动词；Delete 仅供 CRUD 使用
type RecordStore interface {
	// Select 按等值条件查询，结果按 created_at 升序
	Select(ctx context.Context, table entity.Table, filter entity.Filter) ([]entity.Record, error)
	// Insert 插入一行并返回落库后的行
	Insert(ctx context.Context, table entity.Table, row entity.Record) (entity.Record, error)
	// Update 按 ID 更新部分字段，行不存在时返回 ErrRecordNotFound
	Update(ctx context.Context, table entity.Table, id string, patch entity.Record) (entity.Record, error)
	// Delete 按 ID 删除，行不存在时返回 ErrRecordNotFound
	Delete(ctx context.Context, table entity.Table, id string) error
}

// HealthChecker 存储健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Migrator 按表注册信息建表
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Backend 完整存储后端（postgres / sqlite）
type Backend interface {
	RecordStore
	Transactor
	HealthChecker
	Migrator
	Close() error
}
