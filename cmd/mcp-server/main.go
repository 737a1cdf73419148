// Package main MCP 工具服务入口（stdio）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"novel-graph-api/internal/config"
	einoobs "novel-graph-api/internal/observability/eino"
	"novel-graph-api/internal/wire"
	"novel-graph-api/pkg/logger"
	"novel-graph-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout 专用于协议消息，日志写到 stderr
	logger.InitWithWriter(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "mcp-server",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	server, cleanup, err := wire.InitializeMCP(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize mcp server", err)
	}
	defer cleanup()

	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "mcp server stopped with error", err)
		os.Exit(1)
	}
}
