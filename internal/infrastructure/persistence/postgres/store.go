package postgres

import "context"

// Store 组合行存储、事务与运维能力，作为完整的存储后端
type Store struct {
	*RecordStore
	*TxManager
	client *Client
}

// NewStore 创建存储后端
func NewStore(client *Client) *Store {
	return &Store{
		RecordStore: NewRecordStore(client),
		TxManager:   NewTxManager(client),
		client:      client,
	}
}

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// Migrate 迁移表结构
func (s *Store) Migrate(ctx context.Context) error {
	return s.client.Migrate(ctx)
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}
