// Package importjob 处理 Redis Stream 上的异步导入任务
package importjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"novel-graph-api/internal/application/storyimport"
	"novel-graph-api/internal/infrastructure/messaging"
	"novel-graph-api/pkg/logger"
)

// EventPublisher 导入完成事件发布
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, event *messaging.ImportCompletedMessage) (string, error)
}

// Registrar 可注册消息处理器的消费者
type Registrar interface {
	RegisterHandler(msgType string, handler messaging.MessageHandler)
}

// Handler 异步导入任务处理器
// 导入本身的失败写入完成事件，不触发重试；事件发布失败返回错误，由消费者按退避重试（导入是幂等的）
type Handler struct {
	importer  *storyimport.Importer
	publisher EventPublisher
	statuses  *StatusStore
}

// NewHandler 创建处理器，publisher 为 nil 时不发布完成事件
func NewHandler(importer *storyimport.Importer, publisher EventPublisher) *Handler {
	return &Handler{importer: importer, publisher: publisher}
}

// WithStatusStore 完成后写入任务状态
func (h *Handler) WithStatusStore(statuses *StatusStore) *Handler {
	h.statuses = statuses
	return h
}

// Register 注册到消费者
func (h *Handler) Register(r Registrar) {
	r.RegisterHandler(messaging.MessageTypeImportStory, h.HandleStory)
	r.RegisterHandler(messaging.MessageTypeImportEntities, h.HandleEntities)
}

// HandleStory 处理故事包导入任务
func (h *Handler) HandleStory(ctx context.Context, msg *messaging.Message) error {
	job, ok := h.decode(ctx, msg)
	if !ok {
		return nil
	}
	bundle, err := storyimport.DecodeBundle(job.Bundle)
	if err != nil {
		return h.complete(ctx, job, &messaging.ImportCompletedMessage{Error: err.Error()}, nil)
	}

	result := h.importer.ImportAnalyzedStory(ctx, bundle)
	return h.complete(ctx, job, &messaging.ImportCompletedMessage{
		Success:      result.Success,
		StoryID:      result.StoryID,
		StoryWorldID: result.StoryWorldID,
		Error:        result.Error,
	}, result)
}

// HandleEntities 处理无模式批量导入任务
func (h *Handler) HandleEntities(ctx context.Context, msg *messaging.Message) error {
	job, ok := h.decode(ctx, msg)
	if !ok {
		return nil
	}
	var records []any
	if err := json.Unmarshal(job.Records, &records); err != nil {
		return h.complete(ctx, job, &messaging.ImportCompletedMessage{Error: fmt.Sprintf("invalid records: %v", err)}, nil)
	}

	result, err := h.importer.ImportEntities(ctx, records, job.StoryID, job.StoryWorldID)
	if err != nil {
		// 仅 context 取消会走到这里，交给消费者重试
		return fmt.Errorf("bulk import interrupted: %w", err)
	}
	return h.complete(ctx, job, &messaging.ImportCompletedMessage{
		Success:      true,
		StoryID:      result.StoryID,
		StoryWorldID: result.StoryWorldID,
	}, result)
}

func (h *Handler) decode(ctx context.Context, msg *messaging.Message) (*messaging.ImportJobMessage, bool) {
	var job messaging.ImportJobMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		logger.Error(ctx, "invalid import job payload", err, "message_id", msg.ID)
		return nil, false
	}
	if job.JobID == "" {
		job.JobID = msg.ID
	}
	return &job, true
}

// complete 记录任务结果并发布完成事件
func (h *Handler) complete(ctx context.Context, job *messaging.ImportJobMessage, event *messaging.ImportCompletedMessage, result any) error {
	event.JobID = job.JobID
	event.Mode = job.Mode
	event.FinishedAt = time.Now().UTC()
	if event.StoryID == "" {
		event.StoryID = job.StoryID
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode import result: %w", err)
		}
		event.Result = raw
	}

	state := StateSucceeded
	if event.Success {
		logger.Info(ctx, "import job finished", "job_id", job.JobID, "mode", job.Mode, "story_id", event.StoryID)
	} else {
		state = StateFailed
		logger.Warn(ctx, "import job failed", "job_id", job.JobID, "mode", job.Mode, "error", event.Error)
	}

	if h.statuses != nil {
		err := h.statuses.Save(ctx, &Status{
			JobID:        job.JobID,
			Mode:         job.Mode,
			State:        state,
			StoryID:      event.StoryID,
			StoryWorldID: event.StoryWorldID,
			Error:        event.Error,
			Result:       event.Result,
		})
		if err != nil {
			logger.Warn(ctx, "failed to save import job status", "job_id", job.JobID, "error", err.Error())
		}
	}

	if h.publisher == nil {
		return nil
	}
	if _, err := h.publisher.PublishImportCompleted(ctx, event); err != nil {
		return fmt.Errorf("failed to publish import_completed: %w", err)
	}
	return nil
}
