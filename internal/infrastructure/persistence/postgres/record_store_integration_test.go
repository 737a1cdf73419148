//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"novel-graph-api/internal/config"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
)

// RecordStoreSuite 在真实 PostgreSQL 容器上验证行存储
type RecordStoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	store     *Store
}

func TestRecordStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = tcpostgres.Run(s.ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("novel_graph"),
		tcpostgres.WithUsername("tester"),
		tcpostgres.WithPassword("tester"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(s.T(), err, "failed to start postgres container")

	dsn, err := s.container.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	client, err := NewClientWithDSN(dsn, &config.PostgresConfig{LogLevel: "silent"})
	require.NoError(s.T(), err)
	s.store = NewStore(client)
	require.NoError(s.T(), s.store.Migrate(s.ctx))
}

func (s *RecordStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RecordStoreSuite) TestInsertSelectUpdateDelete() {
	story, err := s.store.Insert(s.ctx, entity.TableStories, entity.Record{"title": "Integration"})
	s.Require().NoError(err)
	s.NotEmpty(story.ID())

	dep, err := s.store.Insert(s.ctx, entity.TableEventDependencies, entity.Record{
		"predecessor_event_id": "a",
		"successor_event_id":   "b",
		"dependency_type":      "chronological",
		"strength":             5,
	})
	s.Require().NoError(err)

	updated, err := s.store.Update(s.ctx, entity.TableEventDependencies, dep.ID(), entity.Record{"strength": 8})
	s.Require().NoError(err)
	s.Equal(int64(8), updated.Int("strength", 0))

	rows, err := s.store.Select(s.ctx, entity.TableEventDependencies, entity.Filter{
		"predecessor_event_id": "a",
		"successor_event_id":   "b",
	})
	s.Require().NoError(err)
	s.Len(rows, 1)

	s.Require().NoError(s.store.Delete(s.ctx, entity.TableEventDependencies, dep.ID()))
	s.ErrorIs(s.store.Delete(s.ctx, entity.TableEventDependencies, dep.ID()), repository.ErrRecordNotFound)
}

func (s *RecordStoreSuite) TestTransactionRollback() {
	err := s.store.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if _, err := s.store.Insert(txCtx, entity.TableScenes, entity.Record{"title": "Rolled back"}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	rows, err := s.store.Select(s.ctx, entity.TableScenes, entity.Filter{"title": "Rolled back"})
	s.Require().NoError(err)
	s.Empty(rows)
}
