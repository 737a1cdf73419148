// Package main 异步导入 worker 入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"novel-graph-api/internal/config"
	"novel-graph-api/internal/wire"
	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "import-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	logger.Info(ctx, "import-worker started", "consumers", len(worker.Consumers))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range worker.Consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "import-worker stopped with error", err)
		os.Exit(1)
	}

	logger.Info(context.Background(), "import-worker exited")
}
