package storyimport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/internal/infrastructure/persistence/sqlite"
)

func newMemoryStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// faultyStore 包装真实存储，按表注入查询失败并统计写入
type faultyStore struct {
	repository.RecordStore

	mu         sync.Mutex
	failSelect map[entity.Table]error
	inserts    map[entity.Table]int
	updates    map[entity.Table]int
}

func newFaultyStore(inner repository.RecordStore) *faultyStore {
	return &faultyStore{
		RecordStore: inner,
		failSelect:  make(map[entity.Table]error),
		inserts:     make(map[entity.Table]int),
		updates:     make(map[entity.Table]int),
	}
}

func (f *faultyStore) Select(ctx context.Context, table entity.Table, filter entity.Filter) ([]entity.Record, error) {
	f.mu.Lock()
	err := f.failSelect[table]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.RecordStore.Select(ctx, table, filter)
}

func (f *faultyStore) Insert(ctx context.Context, table entity.Table, row entity.Record) (entity.Record, error) {
	f.mu.Lock()
	f.inserts[table]++
	f.mu.Unlock()
	return f.RecordStore.Insert(ctx, table, row)
}

func (f *faultyStore) Update(ctx context.Context, table entity.Table, id string, patch entity.Record) (entity.Record, error) {
	f.mu.Lock()
	f.updates[table]++
	f.mu.Unlock()
	return f.RecordStore.Update(ctx, table, id, patch)
}

func mustInsert(t *testing.T, store repository.RecordStore, table entity.Table, row entity.Record) entity.Record {
	t.Helper()
	saved, err := store.Insert(context.Background(), table, row)
	require.NoError(t, err)
	return saved
}

func mustSelect(t *testing.T, store repository.RecordStore, table entity.Table, filter entity.Filter) []entity.Record {
	t.Helper()
	rows, err := store.Select(context.Background(), table, filter)
	require.NoError(t, err)
	return rows
}
