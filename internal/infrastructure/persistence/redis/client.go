// Package redis 提供 Redis 客户端、限流器与缓存
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"novel-graph-api/internal/config"
)

const connectTimeout = 5 * time.Second

var tracer = otel.Tracer("redis")

// Client 包装 go-redis 连接
type Client struct {
	rdb *redis.Client
}

// Options 把配置转换为 go-redis 选项
func Options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClient 连接 Redis，PING 失败时关闭连接并返回错误
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	c := Wrap(redis.NewClient(Options(cfg)))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Wrap 包装已有连接
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Redis 底层连接，供 Streams 生产者与消费者使用
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 实现 repository.HealthChecker
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
