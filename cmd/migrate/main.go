package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"cra-notify/internal/config"
	"cra-notify/internal/database"
	"cra-notify/internal/services"
)

const schemaVersion = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	slog.SetDefault(config.NewLogger(cfg.Log, os.Stdout))

	slog.Info("Starting database migration...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	ctx := context.Background()
	if err := (database.PostgresPinger{DB: db}).Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	slog.Info("Database connection established")

	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	// Recording the schema version is best effort.
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, migration state not recorded", "error", err)
	} else {
		defer redisClient.Close()
		if err := services.NewRedisService(redisClient).SetMigrationState(ctx, schemaVersion, "ready"); err != nil {
			slog.Warn("Failed to record migration state", "error", err)
		}
	}

	slog.Info("Database migration completed successfully!", "version", schemaVersion)
}
