// Package sqlite 提供嵌入式 SQLite 存储实现（开发与测试后端）
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"novel-graph-api/pkg/tracer"
)

// MemoryPath 内存库路径
const MemoryPath = ":memory:"

// Store SQLite 记录存储
type Store struct {
	db   *sql.DB
	path string
}

// NewMemoryStore 创建内存库并建表
func NewMemoryStore() (*Store, error) {
	return NewStore(MemoryPath)
}

// NewStore 打开数据库文件并建表
func NewStore(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 内存库每个连接都是独立的数据库，写入也需要串行
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB 获取底层 sql.DB
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path 数据库路径
func (s *Store) Path() string {
	return s.path
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sqlite.HealthCheck")
	defer span.End()

	var result int
	if err := getQuerier(ctx, s.db).QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
