// cmd/historian/main.go moves settled games from the Redis queue into PostgreSQL.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/wordrelay/internal/cache"
	"github.com/jason-s-yu/wordrelay/internal/config"
	"github.com/jason-s-yu/wordrelay/internal/database"
	"github.com/jason-s-yu/wordrelay/internal/historian"
	"github.com/jason-s-yu/wordrelay/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger := logrus.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.PostgresURL())
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.WithError(err).Fatal("schema setup failed")
	}

	rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	write := func(ctx context.Context, recs []models.GameRecord) error {
		return database.InsertGameRecords(ctx, pool, recs)
	}
	svc := historian.New(rdb, cfg.QueueName, write,
		historian.WithBatchSize(cfg.BatchSize),
		historian.WithFlushDelay(cfg.FlushDelay),
		historian.WithLogger(logger),
	)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("historian exited")
	}
	logger.Info("historian shutdown complete")
}
