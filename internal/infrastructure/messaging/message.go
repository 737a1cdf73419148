// Package messaging 基于 Redis Streams 的导入任务与事件投递
package messaging

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Message 流条目 data 字段中的信封
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	StoryID   string            `json:"story_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 以 payload 的 JSON 编码构造信封
func NewMessage(id, msgType, storyID string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		StoryID:   storyID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string, 2)
	}
	m.Metadata[key] = value
}

// GetMetadata 读取元数据，不存在时为空串
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

// UnmarshalPayload 解码载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

const (
	StreamStoryImport Stream = "stream:story:import"
	StreamStoryEvents Stream = "stream:story:events"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupImportWorker ConsumerGroup = "cg-import-worker"
)

// 消息类型
const (
	MessageTypeImportStory     = "import_story"
	MessageTypeImportEntities  = "import_entities"
	MessageTypeImportCompleted = "import_completed"
)

// 导入模式
const (
	ImportModeStory    = "story"
	ImportModeEntities = "entities"
)

// ImportJobMessage 异步导入任务
// Bundle 与 Records 保持原始 JSON，由 worker 解码
type ImportJobMessage struct {
	JobID        string          `json:"job_id"`
	Mode         string          `json:"mode"`
	Bundle       json.RawMessage `json:"bundle,omitempty"`
	Records      json.RawMessage `json:"records,omitempty"`
	StoryID      string          `json:"story_id,omitempty"`
	StoryWorldID string          `json:"story_world_id,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
}

// ImportCompletedMessage 导入完成事件
type ImportCompletedMessage struct {
	JobID        string          `json:"job_id"`
	Mode         string          `json:"mode"`
	Success      bool            `json:"success"`
	StoryID      string          `json:"story_id,omitempty"`
	StoryWorldID string          `json:"story_world_id,omitempty"`
	Error        string          `json:"error,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// BackoffConfig 失败重投的指数退避
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 1s 起步，每次翻倍，最长 1 分钟
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2}
}

// CalculateBackoff 第 retryCount 次重投前的等待时间 Initial*Multiplier^retryCount，不超过 Max
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(max(retryCount, 0)))
	if d > float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}
