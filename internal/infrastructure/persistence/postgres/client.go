// Package postgres 基于 GORM 的 PostgreSQL 记录存储
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"novel-graph-api/internal/config"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/pkg/logger"
)

const (
	pingTimeout   = 5 * time.Second
	slowQueryTime = time.Second
)

var tracer = otel.Tracer("postgres")

// Client GORM 连接池
type Client struct {
	db *gorm.DB
}

// NewClient 按配置连接
func NewClient(cfg *config.PostgresConfig) (*Client, error) {
	return NewClientWithDSN(cfg.DSN(), cfg)
}

// NewClientWithDSN 使用给定连接串，cfg 只提供连接池与日志设置
func NewClientWithDSN(dsn string, cfg *config.PostgresConfig) (*Client, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(slogWriter{}, gormlogger.Config{
			SlowThreshold:             slowQueryTime,
			LogLevel:                  gormLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	c := &Client{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// slogWriter 把 GORM 日志转到 pkg/logger
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	logger.Default().Info(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// DB 返回根连接；事务内请使用 TxManager 存入 ctx 的连接
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 关闭连接池
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 执行 SELECT 1
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.HealthCheck")
	defer span.End()

	var one int
	if err := c.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to reach postgres: %w", err)
	}
	return nil
}

// Migrate 按实体模型 AutoMigrate 全部表
func (c *Client) Migrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.Migrate")
	defer span.End()

	if err := c.db.WithContext(ctx).AutoMigrate(entity.Models()...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
