package handler

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"novel-graph-api/internal/application/importjob"
	"novel-graph-api/internal/application/storyimport"
	"novel-graph-api/internal/config"
	"novel-graph-api/internal/infrastructure/messaging"
	"novel-graph-api/internal/interfaces/http/dto"
	apperrors "novel-graph-api/pkg/errors"
	"novel-graph-api/pkg/logger"
)

// JobPublisher 异步导入任务投递
type JobPublisher interface {
	PublishImportJob(ctx context.Context, job *messaging.ImportJobMessage) (string, error)
}

// JobStatusStore 异步任务状态读写
type JobStatusStore interface {
	Save(ctx context.Context, status *importjob.Status) error
	Get(ctx context.Context, jobID string) (*importjob.Status, bool, error)
}

// ImportHandler 导入处理器
type ImportHandler struct {
	importer  *storyimport.Importer
	publisher JobPublisher
	statuses  JobStatusStore
	cfg       config.ImportConfig
}

// NewImportHandler 创建导入处理器，publisher 为 nil 时拒绝异步请求
func NewImportHandler(importer *storyimport.Importer, publisher JobPublisher, cfg config.ImportConfig) *ImportHandler {
	return &ImportHandler{
		importer:  importer,
		publisher: publisher,
		cfg:       cfg,
	}
}

// WithStatusStore 启用任务状态查询
func (h *ImportHandler) WithStatusStore(statuses JobStatusStore) *ImportHandler {
	h.statuses = statuses
	return h
}

// ImportStory 导入分析后的故事包
// @Summary 导入故事包
// @Description 请求体为 JSON 或 YAML 故事包；async=true 时投递到 Redis Stream
// @Tags Imports
// @Accept json
// @Produce json
// @Param async query bool false "异步导入"
// @Success 200 {object} dto.Response[storyimport.ImportResult]
// @Success 202 {object} dto.Response[dto.ImportJobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.Response[storyimport.ImportResult]
// @Router /v1/imports/story [post]
func (h *ImportHandler) ImportStory(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := readBody(c, h.cfg.MaxBundleBytes)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	bundle, err := storyimport.DecodeBundle(body)
	if err != nil {
		dto.FromError(c, apperrors.ErrBundleInvalid.WithDetail(err.Error()))
		return
	}

	if dto.BindAsync(c) {
		raw, err := json.Marshal(bundle)
		if err != nil {
			dto.FromError(c, apperrors.ErrBundleInvalid.WithDetail(err.Error()))
			return
		}
		h.enqueue(c, &messaging.ImportJobMessage{
			Mode:   messaging.ImportModeStory,
			Bundle: raw,
		})
		return
	}

	result := h.importer.ImportAnalyzedStory(ctx, bundle)
	if !result.Success {
		dto.Unprocessable(c, result.Error, result)
		return
	}
	dto.Success(c, result)
}

// ImportEntities 无模式批量导入
// @Summary 批量导入实体
// @Tags Imports
// @Accept json
// @Produce json
// @Param body body dto.ImportEntitiesRequest true "实体记录"
// @Param async query bool false "异步导入"
// @Success 200 {object} dto.Response[storyimport.BulkResult]
// @Success 202 {object} dto.Response[dto.ImportJobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/imports/entities [post]
func (h *ImportHandler) ImportEntities(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := readBody(c, h.cfg.MaxBundleBytes)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	var req dto.ImportEntitiesRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	if dto.BindAsync(c) {
		raw, err := json.Marshal(req.Records)
		if err != nil {
			dto.FromError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
			return
		}
		h.enqueue(c, &messaging.ImportJobMessage{
			Mode:         messaging.ImportModeEntities,
			Records:      raw,
			StoryID:      req.StoryID,
			StoryWorldID: req.StoryWorldID,
		})
		return
	}

	result, err := h.importer.ImportEntities(ctx, req.Records, req.StoryID, req.StoryWorldID)
	if err != nil {
		dto.FromError(c, apperrors.ErrImportFailed.WithDetail(err.Error()).WithError(err))
		return
	}
	dto.Success(c, result)
}

// enqueue 投递异步任务并返回 202
func (h *ImportHandler) enqueue(c *gin.Context, job *messaging.ImportJobMessage) {
	if !h.cfg.AsyncEnabled || h.publisher == nil {
		dto.FromError(c, apperrors.ErrAsyncImportDisabled)
		return
	}

	job.JobID = uuid.New().String()
	job.RequestID = c.GetString("request_id")
	ctx := logger.WithContext(c.Request.Context(), logger.ImportIDKey, job.JobID)

	messageID, err := h.publisher.PublishImportJob(ctx, job)
	if err != nil {
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeMessagingError, "failed to enqueue import job"))
		return
	}
	logger.Info(ctx, "import job enqueued", "mode", job.Mode, "message_id", messageID)
	if h.statuses != nil {
		err := h.statuses.Save(ctx, &importjob.Status{
			JobID:        job.JobID,
			Mode:         job.Mode,
			State:        importjob.StateQueued,
			StoryID:      job.StoryID,
			StoryWorldID: job.StoryWorldID,
		})
		if err != nil {
			logger.Warn(ctx, "failed to save import job status", "error", err.Error())
		}
	}
	dto.Accepted(c, dto.ImportJobResponse{
		JobID:     job.JobID,
		MessageID: messageID,
		Mode:      job.Mode,
	})
}

// GetJob 查询异步导入任务状态
// @Summary 查询导入任务
// @Tags Imports
// @Produce json
// @Param job_id path string true "任务 ID"
// @Success 200 {object} dto.Response[importjob.Status]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/imports/jobs/{job_id} [get]
func (h *ImportHandler) GetJob(c *gin.Context) {
	if h.statuses == nil {
		dto.FromError(c, apperrors.ErrAsyncImportDisabled)
		return
	}
	jobID := c.Param("job_id")
	status, ok, err := h.statuses.Get(c.Request.Context(), jobID)
	if err != nil {
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to read import job status"))
		return
	}
	if !ok {
		dto.FromError(c, apperrors.ErrRecordNotFound.WithDetail("import job "+jobID))
		return
	}
	dto.Success(c, status)
}

// Classify 判断任意 JSON 值的实体类别
// @Summary 实体分类
// @Tags Imports
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.ClassifyResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/classify [post]
func (h *ImportHandler) Classify(c *gin.Context) {
	body, err := readBody(c, h.cfg.MaxBundleBytes)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}
	dto.Success(c, dto.ClassifyResponse{Kind: string(storyimport.ClassifyEntity(v))})
}
