package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Cache 以 JSON 存取值，导入任务状态存放在这里
type Cache struct {
	client *Client
}

// NewCache 创建缓存
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cache."+op, trace.WithAttributes(attrs...))
}

// Get 返回原始 JSON；键不存在时 ok 为 false 且 err 为 nil
func (c *Cache) Get(ctx context.Context, key string) (raw []byte, ok bool, err error) {
	ctx, span := c.span(ctx, "Get", attribute.String("cache.key", key))
	defer func() {
		span.SetAttributes(attribute.Bool("cache.hit", ok))
		span.End()
	}()

	raw, err = c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return raw, true, nil
}

// Set 写入 value 的 JSON 编码，ttl 为 0 时不过期
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ctx, span := c.span(ctx, "Set", attribute.String("cache.key", key), attribute.String("cache.ttl", ttl.String()))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete 删除键，不存在的键忽略
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := c.span(ctx, "Delete", attribute.Int("cache.keys", len(keys)))
	defer span.End()

	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
