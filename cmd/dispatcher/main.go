package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/trackforge/postback-engine/internal/config"
	"github.com/trackforge/postback-engine/internal/delivery"
	"github.com/trackforge/postback-engine/internal/infra/postgresql"
	"github.com/trackforge/postback-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/trackforge/postback-engine/internal/infra/redis"
	"github.com/trackforge/postback-engine/internal/observability"
	"github.com/trackforge/postback-engine/internal/ratelimit"
	"github.com/trackforge/postback-engine/internal/repository"
	"github.com/trackforge/postback-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	var (
		postbacks repository.PostbackRepository
		attempts  repository.AttemptLogRepository
		limiter   ratelimit.RateLimiter = ratelimit.NoopLimiter{}
	)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("postgres initialization failed", zap.Error(err))
		}
		if err := migrations.Migrate(db); err != nil {
			logger.Fatal("database migrations failed", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("postgres underlying db init failed", zap.Error(err))
		}
		defer sqlDB.Close()

		rdb, err := infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		redisLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
		limiter = redisLimiter

		postbacks = repository.NewGormPostbackRepo(db)
		attempts = repository.NewGormAttemptLogRepo(db)
	case config.StoreMemory:
		postbacks = repository.NewMemoryPostbackRepo()
		attempts = repository.NewMemoryAttemptLogRepo()
		logger.Warn("using in-memory store, state does not survive restarts")
	}

	client := delivery.NewHTTPClient(cfg.DeliveryTimeout(), cfg.UserAgent)
	metrics := observability.NewMetrics()

	dispatcher, err := service.NewDispatcher(postbacks, attempts, client, limiter, metrics, logger,
		service.WithPollInterval(cfg.PollInterval()),
		service.WithBatchSize(cfg.BatchSize),
		service.WithConcurrency(cfg.WorkerConcurrency),
		service.WithClaimLease(cfg.ClaimLease()),
	)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("dispatcher exited", zap.Error(err))
	}
}
