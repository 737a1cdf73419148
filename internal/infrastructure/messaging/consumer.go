package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/metrics"
)

const (
	readBatchSize    = 10
	pendingBatchSize = 20
	minReclaimIdle   = 5 * time.Minute
)

var errRetriesExhausted = errors.New("message exceeded max retries")

// MessageHandler 消息处理函数，返回错误时消息留在 pending 等待重试
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func (c *ConsumerConfig) applyDefaults() {
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.ClaimInterval <= 0 {
		c.ClaimInterval = 30 * time.Second
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff = DefaultBackoffConfig()
	}
}

// Consumer Redis Streams 消费者
// 每个消费者一次只处理一条消息；失败的消息按退避时间重新认领，超过重试上限后转入死信流
type Consumer struct {
	client      *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	cancel   context.CancelFunc
}

// NewConsumer 创建消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg.applyDefaults()
	reclaimIdle := 2 * cfg.Backoff.Max
	if reclaimIdle < minReclaimIdle {
		reclaimIdle = minReclaimIdle
	}
	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: reclaimIdle,
		handlers:    make(map[string]MessageHandler),
	}
}

// Name 消费者名称
func (c *Consumer) Name() string {
	return c.cfg.ConsumerName
}

// RegisterHandler 按消息类型注册处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Run 阻塞消费，直到 ctx 取消或调用 Stop
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("consumer %s already running", c.cfg.ConsumerName)
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	defer c.Stop()

	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	log := logger.FromContext(ctx).With(
		"stream", string(c.cfg.Stream),
		"group", string(c.cfg.Group),
		"consumer", c.cfg.ConsumerName,
	)
	log.Info("consumer started")

	nextReclaim := time.Now()
	for ctx.Err() == nil {
		c.retryOwnPending(ctx)
		if now := time.Now(); !now.Before(nextReclaim) {
			c.reclaimStale(ctx)
			nextReclaim = now.Add(c.cfg.ClaimInterval)
		}

		batch, err := c.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("failed to read from stream", "error", err)
			sleep(ctx, time.Second)
			continue
		}
		for _, xmsg := range batch {
			c.process(ctx, xmsg)
		}
	}
	log.Info("consumer stopped")
	return nil
}

// Stop 结束 Run；未运行时无操作
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		Streams:  []string{string(c.cfg.Stream), ">"},
		Count:    readBatchSize,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []redis.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

// process 解码并分发一条消息
func (c *Consumer) process(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.process",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decodeEntry(xmsg)
	if err != nil {
		logger.Error(ctx, "dropping malformed stream entry", err, "entry_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		return
	}
	ctx = messageContext(ctx, msg)
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("story_id", msg.StoryID),
	)

	c.mu.RLock()
	handler, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.count("unhandled")
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "message handler failed", err, "entry_id", xmsg.ID)
		c.count("failed")
		c.afterFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.count("success")
	c.ack(ctx, xmsg.ID)
}

// messageContext 把消息携带的标识放入日志上下文
func messageContext(ctx context.Context, msg *Message) context.Context {
	ctx = logger.WithContext(ctx, logger.ImportIDKey, msg.ID)
	if msg.StoryID != "" {
		ctx = logger.WithContext(ctx, logger.StoryIDKey, msg.StoryID)
	}
	for key, field := range map[string]logger.ContextKey{
		"request_id": logger.RequestIDKey,
		"trace_id":   logger.TraceIDKey,
	} {
		if v := msg.GetMetadata(key); v != "" {
			ctx = logger.WithContext(ctx, field, v)
		}
	}
	return ctx
}

// afterFailure 未到上限时保留 pending，由 retryOwnPending 在退避后重投
func (c *Consumer) afterFailure(ctx context.Context, entryID string, msg *Message, cause error) {
	deliveries := c.deliveryCount(ctx, entryID)
	if deliveries < c.cfg.RetryLimit {
		logger.Info(ctx, "message kept pending for retry", "entry_id", entryID, "deliveries", deliveries)
		return
	}
	logger.Warn(ctx, "retries exhausted, moving message to dead letter stream",
		"entry_id", entryID, "deliveries", deliveries)
	c.deadLetter(ctx, msg, cause)
	c.ack(ctx, entryID)
}

func (c *Consumer) deliveryCount(ctx context.Context, entryID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  entryID,
		End:    entryID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// retryOwnPending 重投本消费者退避期已过的失败消息
func (c *Consumer) retryOwnPending(ctx context.Context) {
	entries := c.pending(ctx, c.cfg.ConsumerName)
	for _, p := range entries {
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.exhaust(ctx, p.ID, 0)
			continue
		}
		wait := c.cfg.Backoff.CalculateBackoff(int(p.RetryCount))
		if p.Idle < wait {
			continue
		}
		for _, xmsg := range c.claim(ctx, p.ID, wait) {
			c.process(ctx, xmsg)
		}
	}
}

// reclaimStale 接管其他消费者长时间未确认的消息（例如进程崩溃）
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.exhaust(ctx, p.ID, c.reclaimIdle)
			continue
		}
		for _, xmsg := range c.claim(ctx, p.ID, c.reclaimIdle) {
			c.process(ctx, xmsg)
		}
	}
}

// pending 列出 pending 条目；consumer 为空时不限消费者
func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	entries, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Start:    "-",
		End:      "+",
		Count:    pendingBatchSize,
		Consumer: consumer,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
		logger.Error(ctx, "failed to list pending messages", err, "consumer", consumer)
	}
	return entries
}

func (c *Consumer) claim(ctx context.Context, entryID string, minIdle time.Duration) []redis.XMessage {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{entryID},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "entry_id", entryID)
		return nil
	}
	return claimed
}

// exhaust 认领超过重试上限的消息并转入死信流
func (c *Consumer) exhaust(ctx context.Context, entryID string, minIdle time.Duration) {
	for _, xmsg := range c.claim(ctx, entryID, minIdle) {
		if msg, err := decodeEntry(xmsg); err == nil {
			c.deadLetter(ctx, msg, errRetriesExhausted)
		}
		c.ack(ctx, xmsg.ID)
	}
}

// deadLetter 写入 dlq:<stream>
func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	data, err := json.Marshal(map[string]any{
		"source_stream": string(c.cfg.Stream),
		"data":          msg,
		"error":         cause.Error(),
		"failed_at":     time.Now().Unix(),
	})
	if err != nil {
		logger.Error(ctx, "failed to encode dead letter", err, "message_id", msg.ID)
		return
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		logger.Error(ctx, "failed to write dead letter", err, "message_id", msg.ID)
		return
	}
	c.count("dlq")
}

func (c *Consumer) ack(ctx context.Context, entryID string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), entryID).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "entry_id", entryID)
	}
}

func (c *Consumer) count(status string) {
	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), status).Inc()
}

// decodeEntry 条目的 data 字段是 JSON 编码的 Message
func decodeEntry(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("entry %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
