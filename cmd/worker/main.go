// Package main runs the background job worker (email delivery, expired draft
// cleanup).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voluntree/backend/config"
	"github.com/voluntree/backend/internal/notifications"
	"github.com/voluntree/backend/internal/onboarding"
	"github.com/voluntree/backend/internal/worker"
	"github.com/voluntree/backend/pkg/database"
	"github.com/voluntree/backend/pkg/queue"
	"github.com/voluntree/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	notifRepo := notifications.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	emails := worker.NewEmailProcessor(notifRepo, jobQueue, cfg.Email, logger)

	draftRepo := onboarding.NewDraftRepository(pool)
	janitor := worker.NewDraftJanitor(draftRepo, time.Hour, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go emails.Run(workerCtx)
	go janitor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
