package importjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStatusTTL 任务状态保留时长
const DefaultStatusTTL = 24 * time.Hour

// State 任务状态
type State string

const (
	StateQueued    State = "queued"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status 异步导入任务状态
type Status struct {
	JobID        string          `json:"job_id"`
	Mode         string          `json:"mode"`
	State        State           `json:"state"`
	StoryID      string          `json:"story_id,omitempty"`
	StoryWorldID string          `json:"story_world_id,omitempty"`
	Error        string          `json:"error,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// KV 状态存储依赖的键值能力
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// StatusStore 任务状态存储
type StatusStore struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

// NewStatusStore 创建状态存储，ttl 非正数时使用 DefaultStatusTTL
func NewStatusStore(kv KV, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{
		kv:  kv,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func statusKey(jobID string) string {
	return "import:job:" + jobID
}

// Save 写入状态，覆盖同一任务的旧状态
func (s *StatusStore) Save(ctx context.Context, status *Status) error {
	if status.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	status.UpdatedAt = s.now()
	return s.kv.Set(ctx, statusKey(status.JobID), status, s.ttl)
}

// Get 读取状态，不存在或已过期时 ok 为 false
func (s *StatusStore) Get(ctx context.Context, jobID string) (*Status, bool, error) {
	raw, ok, err := s.kv.Get(ctx, statusKey(jobID))
	if err != nil || !ok {
		return nil, false, err
	}
	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &status, true, nil
}
