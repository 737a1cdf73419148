package handler

import (
	"github.com/gin-gonic/gin"

	"novel-graph-api/internal/application/record"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/internal/interfaces/http/dto"
	apperrors "novel-graph-api/pkg/errors"
)

// RecordHandler 各表通用增删改查处理器
type RecordHandler struct {
	records *record.Service
}

// NewRecordHandler 创建记录处理器
func NewRecordHandler(records *record.Service) *RecordHandler {
	return &RecordHandler{records: records}
}

// ListTables 列出可访问的表
// @Summary 表列表
// @Tags Records
// @Produce json
// @Success 200 {object} dto.Response[[]entity.Table]
// @Router /v1/tables [get]
func (h *RecordHandler) ListTables(c *gin.Context) {
	dto.Success(c, record.Tables())
}

// ListRecords 获取记录列表
// @Summary 获取记录列表
// @Tags Records
// @Produce json
// @Param table path string true "表名"
// @Param story_id query string false "故事 ID"
// @Param story_world_id query string false "世界 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]entity.Record]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/tables/{table} [get]
func (h *RecordHandler) ListRecords(c *gin.Context) {
	pageReq := dto.BindPage(c)
	result, err := h.records.List(c.Request.Context(), dto.BindTable(c), record.ListQuery{
		Filter:     dto.BindOwnershipFilter(c),
		Pagination: repository.NewPagination(pageReq.Page, pageReq.PageSize),
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.SuccessWithPage(c, result.Items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// GetRecord 获取单条记录
// @Summary 获取记录
// @Tags Records
// @Produce json
// @Param table path string true "表名"
// @Param id path string true "行 ID"
// @Success 200 {object} dto.Response[entity.Record]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/tables/{table}/{id} [get]
func (h *RecordHandler) GetRecord(c *gin.Context) {
	row, err := h.records.Get(c.Request.Context(), dto.BindTable(c), dto.BindRecordID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, row)
}

// CreateRecord 创建记录
// @Summary 创建记录
// @Tags Records
// @Accept json
// @Produce json
// @Param table path string true "表名"
// @Success 201 {object} dto.Response[entity.Record]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/tables/{table} [post]
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	var row entity.Record
	if err := c.ShouldBindJSON(&row); err != nil {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}
	saved, err := h.records.Create(c.Request.Context(), dto.BindTable(c), row)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, saved)
}

// UpdateRecord 部分更新记录
// @Summary 更新记录
// @Tags Records
// @Accept json
// @Produce json
// @Param table path string true "表名"
// @Param id path string true "行 ID"
// @Success 200 {object} dto.Response[entity.Record]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/tables/{table}/{id} [patch]
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	var patch entity.Record
	if err := c.ShouldBindJSON(&patch); err != nil {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}
	saved, err := h.records.Update(c.Request.Context(), dto.BindTable(c), dto.BindRecordID(c), patch)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, saved)
}

// DeleteRecord 删除记录，并在同一事务内清理引用它的行
// @Summary 删除记录
// @Tags Records
// @Produce json
// @Param table path string true "表名"
// @Param id path string true "行 ID"
// @Success 200 {object} dto.Response[record.DeleteResult]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/tables/{table}/{id} [delete]
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	result, err := h.records.Delete(c.Request.Context(), dto.BindTable(c), dto.BindRecordID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, result)
}
