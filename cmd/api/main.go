package main

import (
	"context"
	"time"

	playgroundValidator "github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/reputrack/creditledger/internal/api"
	v1 "github.com/reputrack/creditledger/internal/api/v1"
	"github.com/reputrack/creditledger/internal/api/validator"
	"github.com/reputrack/creditledger/internal/config"
	"github.com/reputrack/creditledger/internal/database"
	apierrors "github.com/reputrack/creditledger/internal/errors"
	"github.com/reputrack/creditledger/internal/lock"
	"github.com/reputrack/creditledger/internal/metrics"
	"github.com/reputrack/creditledger/internal/publishers"
	"github.com/reputrack/creditledger/internal/repository"
	"github.com/reputrack/creditledger/internal/service"
	"github.com/reputrack/creditledger/pkg/mq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,
			metrics.NewMetrics,
			database.NewConnection,
			NewLockManager,
			NewMQConnection,
			NewPublisher,
			NewValidator,
			NewFiberApp,

			repository.NewLedgerRepository,
			repository.NewBalanceCacheRepository,
			repository.NewUserDirectory,
			repository.NewTransactionManager,
			publishers.NewLedgerPublisher,

			service.NewBalanceService,
			service.NewAssignmentService,
			service.NewConsumptionService,
			service.NewReportService,

			v1.NewHandler,
		),
		fx.Invoke(startServer),
	).Run()
}

func NewFiberApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: apierrors.ErrorHandler(),
	})
}

func NewValidator(m *metrics.Metrics) validator.IXValidator {
	return validator.NewXValidator(playgroundValidator.New(), m)
}

func NewRedisClient(cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		return nil, err
	}

	return client, nil
}

func NewLockManager(cfg *config.Config, logger *zap.Logger) (lock.Manager, error) {
	return lock.NewManager(cfg.Lock.Mode, cfg.Lock.Settings, func() (*redis.Client, error) {
		return NewRedisClient(cfg, logger)
	})
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.RabbitMQ, error) {
	conn, err := mq.NewConnection(cfg.MQ, logger)
	if err != nil {
		return nil, err
	}

	queues := []string{publishers.QueueLedgerTransactions}
	if err := conn.DeclareTopology(queues); err != nil {
		return nil, err
	}

	return conn, nil
}

func NewPublisher(conn *mq.RabbitMQ) (mq.Publisher, error) {
	ch, err := conn.OpenChannel()
	if err != nil {
		return nil, err
	}
	return mq.NewRabbitPublisher(ch), nil
}

func startServer(app *fiber.App, handler *v1.Handler, cfg *config.Config, logger *zap.Logger,
	m *metrics.Metrics, lc fx.Lifecycle) {
	app.Use(metrics.HealthCheckMiddleware())
	app.Use(metrics.HTTPMetricsMiddleware(m, logger))
	api.SetupRoutes(app, handler)

	collector := metrics.NewSystemCollector(m, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			collector.Start(30 * time.Second)
			go func() {
				if err := app.Listen(cfg.API.Port); err != nil {
					logger.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			collector.Stop()
			return app.ShutdownWithContext(ctx)
		},
	})
}
