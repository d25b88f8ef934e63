package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"qrclass/internal/config"
	"qrclass/internal/queue"
	"qrclass/internal/store"
)

// Worker consumes attendance events and maintains the live per-session scan
// counters dashboards poll. The ledger stays the source of truth; losing a
// counter loses nothing but a display value.
func main() {
	cfg := config.Load()

	log, err := zap.NewDevelopment()
	if cfg.Env == "production" || cfg.Env == "prod" {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrclass:events")
	}

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started, waiting for events")
	for evt := range events {
		if evt.Type != queue.EventRecorded {
			continue
		}
		if err := redisClient.IncrLive(ctx, evt.SessionID); err != nil {
			log.Warn("live counter update failed",
				zap.String("session_id", evt.SessionID), zap.Error(err))
			continue
		}
		log.Debug("live counter bumped",
			zap.String("session_id", evt.SessionID),
			zap.String("record_id", evt.RecordID))
	}

	log.Info("worker stopped")
}
