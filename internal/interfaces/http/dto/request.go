// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novel-graph-api/internal/domain/entity"
)

// PageRequest 分页请求参数
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// Normalize 规范化分页参数
func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	if r.PageSize > 100 {
		r.PageSize = 100
	}
}

// BindPage 从 Gin Context 绑定分页参数
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     parseIntWithDefault(c.Query("page"), 1),
		PageSize: parseIntWithDefault(c.Query("page_size"), 20),
	}
	req.Normalize()
	return req
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindTable 从 URI 绑定表名
func BindTable(c *gin.Context) string {
	return c.Param("table")
}

// BindRecordID 从 URI 绑定行 ID
func BindRecordID(c *gin.Context) string {
	return c.Param("id")
}

// BindOwnershipFilter 从查询参数构造归属过滤条件
func BindOwnershipFilter(c *gin.Context) entity.Filter {
	filter := entity.Filter{}
	if v := strings.TrimSpace(c.Query("story_id")); v != "" {
		filter["story_id"] = v
	}
	if v := strings.TrimSpace(c.Query("story_world_id")); v != "" {
		filter["story_world_id"] = v
	}
	return filter
}

// BindAsync 是否请求异步处理
func BindAsync(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.Query("async"))
	return err == nil && v
}
