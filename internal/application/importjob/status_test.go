package importjob

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/infrastructure/messaging"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.ttls[key] = ttl
	return nil
}

func TestStatusStore_SaveAndGet(t *testing.T) {
	kv := newMemKV()
	store := NewStatusStore(kv, 0)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, &Status{JobID: "j1", Mode: messaging.ImportModeStory, State: StateQueued}))
	assert.Equal(t, DefaultStatusTTL, kv.ttls["import:job:j1"])

	got, ok, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateQueued, got.State)
	assert.False(t, got.UpdatedAt.IsZero())

	assert.Error(t, store.Save(ctx, &Status{}))
}

func TestStatusStore_PropagatesErrors(t *testing.T) {
	kv := newMemKV()
	kv.err = errors.New("redis down")
	store := NewStatusStore(kv, time.Minute)

	_, _, err := store.Get(context.Background(), "j1")
	assert.ErrorContains(t, err, "redis down")

	kv.err = nil
	kv.data["import:job:bad"] = []byte("not json")
	_, _, err = store.Get(context.Background(), "bad")
	assert.ErrorContains(t, err, "failed to decode job status")
}

func TestHandler_WritesFinalStatus(t *testing.T) {
	h, _, _ := setup(t)
	statuses := NewStatusStore(newMemKV(), time.Hour)
	h.WithStatusStore(statuses)
	ctx := context.Background()

	ok := jobMessage(t, messaging.ImportJobMessage{
		JobID:  "job-ok",
		Mode:   messaging.ImportModeStory,
		Bundle: json.RawMessage(`{"story":{"title":"Ashfall"}}`),
	})
	require.NoError(t, h.HandleStory(ctx, ok))

	failed := jobMessage(t, messaging.ImportJobMessage{
		JobID:  "job-bad",
		Mode:   messaging.ImportModeStory,
		Bundle: json.RawMessage(`{"characters":[{"name":"Vex"}]}`),
	})
	require.NoError(t, h.HandleStory(ctx, failed))

	got, found, err := statuses.Get(ctx, "job-ok")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateSucceeded, got.State)
	assert.NotEmpty(t, got.StoryID)
	assert.NotEmpty(t, got.Result)

	got, found, err = statuses.Get(ctx, "job-bad")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateFailed, got.State)
	assert.NotEmpty(t, got.Error)
}
