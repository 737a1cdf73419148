package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// slidingWindow 在一次往返内完成清理、计数与记录
// KEYS[1] 窗口键；ARGV: now(ms), window(ms), limit, member
// 返回 {allowed(0|1), 记录后的窗口内请求数}
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return {0, count}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window * 2)
return {1, count + 1}
`)

// RateLimiter 基于有序集合的滑动窗口限流
type RateLimiter struct {
	client *Client
	now    func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow 窗口内请求数未达到 limit 时记录本次请求并放行
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow", trace.WithAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
	))
	defer span.End()

	now := l.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())
	res, err := slidingWindow.Run(ctx, l.client.rdb, []string{key},
		now, window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	allowed := len(res) == 2 && res[0] == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))
	return allowed, nil
}

// Remaining 当前窗口剩余的请求数
func (l *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	since := l.now().Add(-window).UnixMilli()
	n, err := l.client.rdb.ZCount(ctx, key, fmt.Sprintf("(%d", since), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit window: %w", err)
	}
	return max(limit-int(n), 0), nil
}

// Reset 清空键上的计数
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.rdb.Del(ctx, key).Err()
}
