package main

import (
	"context"

	"github.com/reputrack/creditledger/internal/config"
	"github.com/reputrack/creditledger/internal/consumers"
	"github.com/reputrack/creditledger/internal/database"
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
			NewMQConnection,
			NewPublisher,
			NewConsumer,

			repository.NewLedgerRepository,
			repository.NewBalanceCacheRepository,
			repository.NewUserDirectory,
			repository.NewTransactionManager,
			publishers.NewLedgerPublisher,
			service.NewAssignmentService,

			consumers.NewPaymentConsumer,
		),
		fx.Invoke(runPaymentConsumer),
	).Run()
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.RabbitMQ, error) {
	conn, err := mq.NewConnection(cfg.MQ, logger)
	if err != nil {
		return nil, err
	}

	queues := []string{publishers.QueueLedgerTransactions, consumers.QueuePaymentsConfirmed}
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

func NewConsumer(conn *mq.RabbitMQ) (mq.Consumer, error) {
	ch, err := conn.OpenChannel()
	if err != nil {
		return nil, err
	}
	return mq.NewRabbitConsumer(ch), nil
}

func runPaymentConsumer(consumer consumers.PaymentConsumer, logger *zap.Logger, lc fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Consume(ctx); err != nil && ctx.Err() == nil {
					logger.Error("Payment consumer stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
