// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"novel-graph-api/internal/domain/repository"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	store   repository.HealthChecker
	redis   repository.HealthChecker
	version string
}

// NewHealthHandler 创建健康检查处理器，redis 可为 nil
func NewHealthHandler(store repository.HealthChecker, redis repository.HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		redis:   redis,
		version: version,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口
// 存储不可用时返回 503；Redis 只影响异步导入，失败时标记为 degraded
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"store": probe(ctx, h.store, "error"),
		"redis": {Status: "disabled"},
	}
	if h.redis != nil {
		checks["redis"] = probe(ctx, h.redis, "degraded")
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if checks["store"].Status != "ok" {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// probe 执行单项检查，failStatus 为失败时的状态
func probe(ctx context.Context, checker repository.HealthChecker, failStatus string) *readinessCheck {
	if checker == nil {
		return &readinessCheck{Status: "missing", Error: "not configured"}
	}
	start := time.Now()
	err := checker.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = failStatus
		check.Error = err.Error()
	}
	return check
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
