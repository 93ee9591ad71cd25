package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentflow_backend/internals/configs"
	database "rentflow_backend/internals/databases"
	"rentflow_backend/internals/features/notifications"
	"rentflow_backend/internals/features/payments/mpesa"
	paymentService "rentflow_backend/internals/features/payments/service"
	helper "rentflow_backend/internals/helpers"
	middlewares "rentflow_backend/internals/middlewares"
	requestLogger "rentflow_backend/internals/middlewares/logger"
	routes "rentflow_backend/internals/route"
)

// requestTimeout bounds a handler's UserContext. It must exceed the provider HTTP timeout.
const requestTimeout = 25 * time.Second

func main() {
	configs.LoadEnv()
	cfg := configs.Load()

	logger, err := configs.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// amounts go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// 🔌 DB connect + pool + schema
	db, err := database.Open(cfg.DB, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	database.TunePool(db, logger)
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	sink := notifications.NewSink(cfg.Kafka, logger)
	deps := routes.Deps{
		DB:       db,
		Config:   cfg,
		Log:      logger,
		Provider: mpesa.NewClient(cfg.Mpesa, logger),
		Sink:     sink,
	}
	services := routes.NewServices(deps)

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.FromFiberError(c, err)
		},
	})

	app.Use(
		middlewares.RequestIDMiddleware(),
		middlewares.RecoveryMiddleware(logger),
		requestLogger.LoggerMiddleware(logger),
		middlewares.MetricsMiddleware(),
		middlewares.CorsMiddleware(cfg.CORSOrigins),
		compress.New(compress.Config{Level: compress.LevelDefault}),
		middlewares.GlobalRateLimiter(),
	)
	app.Use(func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})

	routes.SetupRoutes(app, deps, services)

	// keep-alive + per-connection timeouts
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	// ⏱ stale pending sweeper
	bg, stopBG := context.WithCancel(context.Background())
	paymentService.NewSweeper(db, services.Gaps, cfg.Sweeper, logger).Start(bg)

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	stopBG()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("notification sink close", zap.Error(err))
		}
	}
	database.Close(db)
}
