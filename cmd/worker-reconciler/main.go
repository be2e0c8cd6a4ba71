package main

import (
	"context"

	"github.com/reputrack/creditledger/internal/config"
	"github.com/reputrack/creditledger/internal/database"
	"github.com/reputrack/creditledger/internal/jobs"
	"github.com/reputrack/creditledger/internal/metrics"
	"github.com/reputrack/creditledger/internal/repository"
	"github.com/reputrack/creditledger/internal/service"
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

			repository.NewLedgerRepository,
			repository.NewBalanceCacheRepository,
			repository.NewTransactionManager,
			service.NewBalanceService,

			NewReconciler,
		),
		fx.Invoke(runReconciler),
	).Run()
}

func NewReconciler(cfg *config.Config, balances service.BalanceService,
	cache repository.BalanceCacheRepository, logger *zap.Logger) *jobs.Reconciler {
	return jobs.NewReconciler(balances, cache, logger, cfg.Reconcile)
}

func runReconciler(reconciler *jobs.Reconciler, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go reconciler.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			reconciler.Stop()
			return nil
		},
	})
}
