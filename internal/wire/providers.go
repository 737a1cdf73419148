package wire

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"novel-graph-api/internal/application/importjob"
	"novel-graph-api/internal/application/record"
	"novel-graph-api/internal/application/storyimport"
	"novel-graph-api/internal/config"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/internal/infrastructure/messaging"
	"novel-graph-api/internal/infrastructure/persistence/postgres"
	"novel-graph-api/internal/infrastructure/persistence/redis"
	"novel-graph-api/internal/infrastructure/persistence/sqlite"
	"novel-graph-api/internal/interfaces/http/handler"
	"novel-graph-api/internal/interfaces/http/middleware"
	"novel-graph-api/internal/interfaces/mcp"
	"novel-graph-api/pkg/logger"
)

// Worker import-worker 依赖容器
type Worker struct {
	Consumers []*messaging.Consumer
}

// ProvideBackend 按驱动提供存储后端
func ProvideBackend(ctx context.Context, cfg *config.Config) (repository.Backend, func(), error) {
	var (
		backend repository.Backend
		err     error
	)
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		backend, err = sqlite.NewStore(cfg.Database.SQLite.Path)
	case config.DriverPostgres, "":
		var client *postgres.Client
		client, err = postgres.NewClient(&cfg.Database.Postgres)
		if err == nil {
			backend = postgres.NewStore(client)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "storage backend ready", "driver", cfg.Database.Driver)

	cleanup := func() {
		_ = backend.Close()
	}
	return backend, cleanup, nil
}

// ProvideRedisClientOptional 提供 Redis 客户端；未启用或不可达时返回 nil
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, async import and rate limit disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端，连接失败返回错误
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者，client 为 nil 时返回 nil
func ProvideMessagingProducer(client *redis.Client, cfg *config.Config) *messaging.Producer {
	if client == nil {
		return nil
	}
	return messaging.NewProducer(client.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideRateLimiter 提供限流器，client 为 nil 时不限流
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideJobPublisher 提供异步导入任务投递
func ProvideJobPublisher(producer *messaging.Producer) handler.JobPublisher {
	if producer == nil {
		return nil
	}
	return producer
}

// ProvideEventPublisher 提供导入完成事件发布，未开启时返回 nil
func ProvideEventPublisher(producer *messaging.Producer, cfg *config.Config) importjob.EventPublisher {
	if producer == nil || !cfg.Import.PublishEvents {
		return nil
	}
	return producer
}

// ProvideStatusStore 提供任务状态存储，client 为 nil 时返回 nil
func ProvideStatusStore(client *redis.Client, cfg *config.Config) *importjob.StatusStore {
	if client == nil {
		return nil
	}
	return importjob.NewStatusStore(redis.NewCache(client), cfg.Import.JobStatusTTL)
}

// ProvideImportJobHandler 提供异步导入任务处理器
func ProvideImportJobHandler(importer *storyimport.Importer, publisher importjob.EventPublisher, statuses *importjob.StatusStore) *importjob.Handler {
	h := importjob.NewHandler(importer, publisher)
	if statuses != nil {
		h.WithStatusStore(statuses)
	}
	return h
}

// ProvideImporter 提供导入器
func ProvideImporter(backend repository.Backend) *storyimport.Importer {
	return storyimport.NewImporter(backend)
}

// ProvideRecordService 提供记录服务
func ProvideRecordService(backend repository.Backend) *record.Service {
	return record.NewService(backend)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(backend repository.Backend, client *redis.Client, cfg *config.Config) *handler.HealthHandler {
	var redisChecker repository.HealthChecker
	if client != nil {
		redisChecker = client
	}
	return handler.NewHealthHandler(backend, redisChecker, cfg.App.Version)
}

// ProvideImportHandler 提供导入处理器
func ProvideImportHandler(importer *storyimport.Importer, publisher handler.JobPublisher, statuses *importjob.StatusStore, cfg *config.Config) *handler.ImportHandler {
	h := handler.NewImportHandler(importer, publisher, cfg.Import)
	if statuses != nil {
		h.WithStatusStore(statuses)
	}
	return h
}

// ProvideConsumers 按配置数量创建消费者并注册导入任务处理器
func ProvideConsumers(client *redis.Client, jobs *importjob.Handler, cfg *config.Config) []*messaging.Consumer {
	streamCfg := cfg.Messaging.RedisStream
	n := streamCfg.Consumers
	if n <= 0 {
		n = 1
	}
	base := consumerBaseName()

	consumers := make([]*messaging.Consumer, 0, n)
	for i := 0; i < n; i++ {
		c := messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
			Stream:        messaging.StreamStoryImport,
			Group:         messaging.ConsumerGroupImportWorker,
			ConsumerName:  fmt.Sprintf("%s-%d", base, i),
			BlockTimeout:  streamCfg.BlockTimeout,
			ClaimInterval: streamCfg.ClaimInterval,
			RetryLimit:    streamCfg.RetryLimit,
			Backoff: messaging.BackoffConfig{
				Initial:    streamCfg.RetryBackoff.Initial,
				Max:        streamCfg.RetryBackoff.Max,
				Multiplier: streamCfg.RetryBackoff.Multiplier,
			},
		})
		jobs.Register(c)
		consumers = append(consumers, c)
	}
	return consumers
}

func consumerBaseName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "import-worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

// ProvideMCPServer 提供 MCP 工具服务
func ProvideMCPServer(ctx context.Context, cfg *config.Config, importer *storyimport.Importer, records *record.Service) (*mcp.Server, error) {
	name := cfg.MCP.Name
	if name == "" {
		name = cfg.App.Name
	}
	version := cfg.MCP.Version
	if version == "" {
		version = cfg.App.Version
	}
	return mcp.NewServer(ctx, name, version, mcp.NewTools(importer, records))
}
