// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/auth"
	"github.com/jason-s-yu/wordrelay/internal/cache"
	"github.com/jason-s-yu/wordrelay/internal/config"
	"github.com/jason-s-yu/wordrelay/internal/game"
	"github.com/jason-s-yu/wordrelay/internal/handlers"
	"github.com/jason-s-yu/wordrelay/internal/pinyin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		if err := auth.InitFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpiry); err != nil {
			logger.WithError(err).Fatal("failed to load jwt keys")
		}
	} else {
		logger.Warn("no jwt key files configured, sessions end on restart")
		if err := auth.Init(cfg.TokenExpiry); err != nil {
			logger.WithError(err).Fatal("auth init failed")
		}
	}

	table, err := pinyin.LoadTableFile(cfg.PinyinTablePath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load pinyin table")
	}
	logger.WithField("chars", table.Len()).Info("pinyin table loaded")

	users, err := auth.LoadDirectoryFile(cfg.UsersPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load users")
	}

	var opts []game.RoomOption
	rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		// games still run, they are just not archived
		logger.WithError(err).Warn("redis unavailable, game records disabled")
	} else {
		defer rdb.Close()
		opts = append(opts, game.WithRecorder(cache.NewRecorder(rdb, cfg.QueueName)))
	}

	store := game.NewRoomStore(logger, opts...)
	ticker := game.NewTicker(store, cfg.TickInterval, logger)

	srv := handlers.NewRoomServer(store, table, users, logger)
	srv.TokenExpiry = cfg.TokenExpiry
	srv.MessageRate = rate.Limit(cfg.MessageRate)
	srv.MessageBurst = cfg.MessageBurst

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ticker.Run(ctx)
	})
	g.Go(func() error {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server shutdown complete")
}
