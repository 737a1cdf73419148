//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"novel-graph-api/internal/config"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/internal/interfaces/http/handler"
	"novel-graph-api/internal/interfaces/http/router"
	"novel-graph-api/internal/interfaces/mcp"
)

// InitializeApp 初始化 HTTP 应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StorageSet,
		OptionalRedisSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步导入 worker，Redis 必须可用
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		StorageSet,
		WorkerSet,
	)
	return nil, nil, nil
}

// InitializeMCP 初始化 MCP 工具服务
func InitializeMCP(ctx context.Context, cfg *config.Config) (*mcp.Server, func(), error) {
	wire.Build(
		StorageSet,
		ProvideMCPServer,
	)
	return nil, nil, nil
}

// InitializeBackend 仅初始化存储后端（bootstrap / storyctl 使用）
func InitializeBackend(ctx context.Context, cfg *config.Config) (repository.Backend, func(), error) {
	wire.Build(
		ProvideBackend,
	)
	return nil, nil, nil
}

// StorageSet 存储与应用服务
var StorageSet = wire.NewSet(
	ProvideBackend,
	ProvideImporter,
	ProvideRecordService,
)

// OptionalRedisSet Redis 相关能力，不可用时退化为 nil
var OptionalRedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideMessagingProducer,
	ProvideRateLimiter,
	ProvideJobPublisher,
	ProvideStatusStore,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideImportHandler,
	handler.NewRecordHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// WorkerSet worker 提供者集合
var WorkerSet = wire.NewSet(
	ProvideRedisClient,
	ProvideMessagingProducer,
	ProvideEventPublisher,
	ProvideStatusStore,
	ProvideImportJobHandler,
	ProvideConsumers,
	wire.Struct(new(Worker), "*"),
)
