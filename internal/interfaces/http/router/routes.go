// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"novel-graph-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	importHandler *handler.ImportHandler,
	recordHandler *handler.RecordHandler,
) {
	// 导入
	imports := v1.Group("/imports")
	{
		imports.POST("/story", importHandler.ImportStory)
		imports.POST("/entities", importHandler.ImportEntities)
		imports.GET("/jobs/:job_id", importHandler.GetJob)
	}
	v1.POST("/classify", importHandler.Classify)

	// 通用表记录
	tables := v1.Group("/tables")
	{
		tables.GET("", recordHandler.ListTables)
		tables.GET("/:table", recordHandler.ListRecords)
		tables.POST("/:table", recordHandler.CreateRecord)
		tables.GET("/:table/:id", recordHandler.GetRecord)
		tables.PATCH("/:table/:id", recordHandler.UpdateRecord)
		tables.DELETE("/:table/:id", recordHandler.DeleteRecord)
	}
}
