package postgres

import (
	"context"

	"gorm.io/gorm"

	"novel-graph-api/internal/domain/repository"
)

// TxManager 实现 repository.Transactor
// 事务中的 *gorm.DB 存入 ctx，RecordStore 通过 conn 取用；嵌套调用复用外层事务
type TxManager struct {
	client *Client
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction fn 返回错误或 panic 时回滚
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, repository.TxKey{}, tx))
	})
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// conn 当前 ctx 应使用的连接：事务内为事务句柄，否则为连接池
func (c *Client) conn(ctx context.Context) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx.WithContext(ctx)
	}
	return c.db.WithContext(ctx)
}
