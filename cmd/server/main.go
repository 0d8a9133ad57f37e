// Command server runs the product import HTTP API and its background job
// workers in a single process.
//
// Startup order: env + config, logging, tracing, storage, queue and progress
// backends (Redis when configured, in-memory otherwise), worker pool, HTTP
// routes. Shutdown drains the HTTP server first, then stops the workers and
// flushes the tracer.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-product-importer/internal/config"
	httpapi "github.com/tbourn/go-product-importer/internal/http"
	"github.com/tbourn/go-product-importer/internal/importer"
	"github.com/tbourn/go-product-importer/internal/jobs"
	"github.com/tbourn/go-product-importer/internal/observability"
	"github.com/tbourn/go-product-importer/internal/progress"
	"github.com/tbourn/go-product-importer/internal/repo"
	"github.com/tbourn/go-product-importer/internal/sysutil"
	"github.com/tbourn/go-product-importer/internal/webhook"
)

var version = "dev"

func main() {
	// Optional .env for local development; real deployments set the env.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	if err := os.MkdirAll(cfg.Import.UploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Import.UploadDir).Msg("create upload dir failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database failed")
	}

	// Redis backs both the progress store and the task queue when configured;
	// otherwise single-process in-memory equivalents are used.
	var (
		store progress.Store
		queue jobs.Queue
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis ping failed")
		}
		store = progress.NewRedisStore(rdb)
		queue = jobs.NewRedisQueue(rdb, cfg.Redis.QueueKey)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis progress store and queue")
	} else {
		store = progress.NewMemoryStore()
		queue = jobs.NewMemoryQueue(1024)
		log.Info().Msg("using in-memory progress store and queue")
	}

	tracker := progress.NewTracker(store, cfg.Import.ProgressTTL)
	dispatcher := webhook.NewDispatcher(db, cfg.Webhook.Timeout)

	runner := &jobs.Runner{
		Queue: queue,
		Importer: &importer.Importer{
			DB:        db,
			Tracker:   tracker,
			Events:    &jobs.Publisher{Queue: queue},
			ChunkSize: cfg.Import.ChunkSize,
		},
		Notifier: dispatcher,
		Workers:  cfg.Workers,
		Retry: webhook.RetryPolicy{
			MaxAttempts: cfg.Webhook.MaxAttempts,
			Backoff:     cfg.Webhook.RetryBackoff,
		},
	}
	runner.Start(ctx)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, queue, tracker, dispatcher, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	runner.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
