// Package middleware 提供 HTTP 中间件
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"novel-graph-api/pkg/logger"
)

// AccessLogConfig 访问日志配置
type AccessLogConfig struct {
	// SkipPaths 不记录的路径
	SkipPaths []string
}

// DefaultAccessLogSkipPaths 探针与指标路径
var DefaultAccessLogSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// AccessLog 访问日志中间件
// 5xx 记为 warn，其余记为 info
func AccessLog(cfg AccessLogConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		if c.Writer.Status() >= 500 {
			logger.Warn(ctx, "api request", fields...)
			return
		}
		logger.Info(ctx, "api request", fields...)
	}
}
