// Command create-schema applies the key-value store schema: SQL migrations
// for Postgres, the table for SQLite. DynamoDB tables are provisioned
// outside the application.
package main

import (
	"context"
	"log"

	"visamate-backend/app"
	"visamate-backend/config"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := config.SetupLogger(cfg)

	if cfg.KVBackend == config.KVDynamoDB || cfg.KVBackend == config.KVMemory {
		log.Printf("KV_BACKEND=%s has no schema to create", cfg.KVBackend)
		return
	}

	// migrations always run here, whatever RUN_MIGRATIONS says
	cfg.RunMigrations = true
	ctx := context.Background()
	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	defer closeStore()

	if err := store.Ping(ctx); err != nil {
		log.Fatalf("Store not reachable after migration: %v", err)
	}
	log.Printf("✓ Schema ready for %s backend", cfg.KVBackend)
}
