package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/jobs"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// Worker persists recognition audit events and sweeps abandoned sessions.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:recognitions")
	}

	repo := attendance.NewRepository(db.Client)

	jobs.StartSessionCloseJob(ctx, repo, cfg.SessionMaxAge, cfg.SessionSweepInterval, logger)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for recognition events")
	for msg := range messages {
		if msg.Type != queue.TypeRecognition {
			continue
		}
		evt, err := queue.DecodeEvent(msg)
		if err != nil {
			logger.Warn("bad recognition event", zap.Error(err))
			continue
		}
		if err := repo.InsertRecognitionEvent(ctx, evt); err != nil {
			logger.Warn("store recognition event failed",
				zap.String("session_id", evt.SessionID), zap.Error(err))
		}
	}

	logger.Info("worker stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" || env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
