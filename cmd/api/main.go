package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/trackforge/postback-engine/internal/config"
	"github.com/trackforge/postback-engine/internal/domain"
	"github.com/trackforge/postback-engine/internal/handler"
	"github.com/trackforge/postback-engine/internal/infra/postgresql"
	"github.com/trackforge/postback-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/trackforge/postback-engine/internal/infra/redis"
	"github.com/trackforge/postback-engine/internal/observability"
	"github.com/trackforge/postback-engine/internal/repository"
	"github.com/trackforge/postback-engine/internal/service"
	"github.com/trackforge/postback-engine/internal/transport"
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
		postbacks   repository.PostbackRepository
		attempts    repository.AttemptLogRepository
		conversions domain.ConversionLookup
		sqlDB       *sql.DB
		rdb         *goredis.Client
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
		sqlDB, err = db.DB()
		if err != nil {
			logger.Fatal("postgres underlying db init failed", zap.Error(err))
		}
		defer sqlDB.Close()

		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		postbacks = repository.NewGormPostbackRepo(db)
		attempts = repository.NewGormAttemptLogRepo(db)
		conversions = repository.NewGormConversionLookup(db)
	case config.StoreMemory:
		postbacks = repository.NewMemoryPostbackRepo()
		attempts = repository.NewMemoryAttemptLogRepo()
		conversions = repository.PassthroughConversionLookup{}
		logger.Warn("using in-memory store, state does not survive restarts")
	}

	svc, err := service.NewPostbackService(postbacks, attempts, conversions, logger)
	if err != nil {
		logger.Fatal("service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      "postback-engine-api",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	if err := handler.RegisterPostbackRoutes(app, svc); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	logger.Info("postback-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.String("store", cfg.StoreDriver),
	)

	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
