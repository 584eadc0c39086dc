package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/config"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/logger"
	"github.com/safar/medtrade/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down]")
	}

	direction := migrations.Direction(os.Args[1])
	if direction != migrations.Up && direction != migrations.Down {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		zlog.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	ran, err := migrations.Run(context.Background(), db.DB, direction)
	for _, name := range ran {
		zlog.Info("migration applied", zap.String("file", name))
	}
	if err != nil {
		zlog.Fatal("run migrations", zap.Error(err))
	}

	zlog.Info("migrations complete", zap.Int("count", len(ran)), zap.String("direction", string(direction)))
}
