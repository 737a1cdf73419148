package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"novel-graph-api/internal/config"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting schema bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	backend, cleanup, err := wire.InitializeBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	defer cleanup()

	if err := backend.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	if err := backend.HealthCheck(ctx); err != nil {
		log.Fatalf("storage not healthy after migration: %v", err)
	}

	fmt.Printf("Schema ready on %s (%d tables)\n", cfg.Database.Driver, len(entity.Tables()))
}
