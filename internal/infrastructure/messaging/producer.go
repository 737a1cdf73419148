package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxLen   = 100000
	publishAttempts = 3
	publishBackoff  = 100 * time.Millisecond
)

var tracer = otel.Tracer("messaging")

// Producer 向 Redis Streams 追加消息，流按 MaxLen 近似裁剪
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建生产者，maxLen <= 0 时使用默认值
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 追加一条消息并返回流条目 ID；连接错误时短暂退避后重试
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish", trace.WithAttributes(
		attribute.String("stream", string(stream)),
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
	))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			sleep(ctx, publishBackoff*time.Duration(attempt))
			if ctx.Err() != nil {
				break
			}
		}
		entryID, err := p.client.XAdd(ctx, args).Result()
		if err == nil {
			span.SetAttributes(
				attribute.String("stream.message_id", entryID),
				attribute.Int("publish.attempts", attempt+1),
			)
			return entryID, nil
		}
		lastErr = err
	}
	if ctx.Err() != nil && lastErr == nil {
		lastErr = ctx.Err()
	}
	span.RecordError(lastErr)
	return "", fmt.Errorf("failed to publish to %s: %w", stream, lastErr)
}

// PublishImportJob 投递异步导入任务，携带请求 ID 与 trace ID 以便 worker 串联日志
func (p *Producer) PublishImportJob(ctx context.Context, job *ImportJobMessage) (string, error) {
	msgType := MessageTypeImportStory
	if job.Mode == ImportModeEntities {
		msgType = MessageTypeImportEntities
	}
	msg, err := NewMessage(job.JobID, msgType, job.StoryID, job)
	if err != nil {
		return "", err
	}
	if job.RequestID != "" {
		msg.SetMetadata("request_id", job.RequestID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}
	return p.Publish(ctx, StreamStoryImport, msg)
}

// PublishImportCompleted 发布导入完成事件
func (p *Producer) PublishImportCompleted(ctx context.Context, event *ImportCompletedMessage) (string, error) {
	msg, err := NewMessage(event.JobID, MessageTypeImportCompleted, event.StoryID, event)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("success", strconv.FormatBool(event.Success))
	return p.Publish(ctx, StreamStoryEvents, msg)
}
