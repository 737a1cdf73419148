// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"novel-graph-api/internal/interfaces/http/dto"
	"novel-graph-api/pkg/errors"
	"novel-graph-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerSecond 每个客户端每秒请求数
	RequestsPerSecond int
	// KeyFunc 构造限流 Key，默认按客户端 IP 与路由模板
	KeyFunc func(c *gin.Context) string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// RateLimit 限流中间件，limiter 为 nil 时不限流
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaultRateLimitKey
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := cfg.KeyFunc(c)

		allowed, err := limiter.Allow(ctx, key, cfg.RequestsPerSecond, time.Second)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(ctx, "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if remaining, err := limiter.Remaining(ctx, key, cfg.RequestsPerSecond, time.Second); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "rate limit exceeded",
				Error:   &dto.ErrorDetail{ErrorCode: string(errors.CodeTooManyRequests)},
				TraceID: c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

// defaultRateLimitKey ratelimit:{client_ip}:{route}
func defaultRateLimitKey(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return "ratelimit:" + c.ClientIP() + ":" + route
}
