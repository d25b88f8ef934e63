package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrclass/internal/config"
	"qrclass/internal/httpapi"
	"qrclass/internal/ledger"
	"qrclass/internal/queue"
	"qrclass/internal/report"
	"qrclass/internal/session"
	"qrclass/internal/store"
	"qrclass/internal/token"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	var (
		db          *store.DB
		sessionRepo session.Repository
		recordRepo  ledger.Repository
	)
	if cfg.StoreBackend == "memory" {
		sessionRepo = session.NewMemoryRepository()
		recordRepo = ledger.NewMemoryRepository()
		log.Info("using in-memory store")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Warn("db not reachable", zap.Error(err))
		} else if err := db.Migrate(cfg.MigrationsDir); err != nil {
			log.Warn("migrations failed", zap.Error(err))
		}
		if db != nil {
			sessionRepo = session.NewPostgresRepository(db.Client)
			recordRepo = ledger.NewPostgresRepository(db.Client)
		} else {
			sessionRepo = session.NewMemoryRepository()
			recordRepo = ledger.NewMemoryRepository()
			log.Warn("falling back to in-memory store")
		}
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrclass:events")
	}

	registry := session.NewRegistry(sessionRepo, log)
	att := ledger.NewService(recordRepo, sessionRepo, q, log, cfg.SubmitRetries)
	reports := report.NewService(sessionRepo, recordRepo, redisClient)
	codec := token.NewCodec(cfg.PublicBaseURL)

	r := httpapi.New(httpapi.Deps{
		Cfg:      cfg,
		Log:      log,
		Registry: registry,
		Sessions: sessionRepo,
		Ledger:   att,
		Reports:  reports,
		Codec:    codec,
		DB:       db,
		Redis:    redisClient,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}
