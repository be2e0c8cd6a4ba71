package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/reputrack/creditledger/internal/repository"
	"github.com/reputrack/creditledger/internal/service"
	"go.uber.org/zap"
)

type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	PageSize int           `mapstructure:"page_size"`
}

// Reconciler periodically refolds every cached balance from the log. A
// divergence is reported and the cache row rebuilt; the log always wins.
type Reconciler struct {
	balances service.BalanceService
	cache    repository.BalanceCacheRepository
	logger   *zap.Logger
	cfg      ReconcilerConfig
	stopCh   chan struct{}
}

func NewReconciler(balances service.BalanceService, cache repository.BalanceCacheRepository,
	logger *zap.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	return &Reconciler{
		balances: balances,
		cache:    cache,
		logger:   logger,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Balance reconciler started", zap.Duration("interval", r.cfg.Interval))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Balance reconciler stopping, context done")
			return
		case <-r.stopCh:
			r.logger.Info("Balance reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// RunOnce walks every cached balance once, paging by user ID.
func (r *Reconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	checked, mismatches := 0, 0

	afterUserID := ""
	for {
		ids, err := r.cache.ListUserIDs(afterUserID, r.cfg.PageSize)
		if err != nil {
			r.logger.Error("Failed to page balance caches", zap.Error(err))
			return
		}
		if len(ids) == 0 {
			break
		}

		for _, userID := range ids {
			_, err := r.balances.Reconcile(ctx, userID)
			checked++

			if err == nil {
				continue
			}

			var integrityErr service.DataIntegrityError
			if errors.As(err, &integrityErr) {
				mismatches++
				continue
			}

			r.logger.Error("Reconciliation failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}

		afterUserID = ids[len(ids)-1]
	}

	r.logger.Info("Reconciliation pass finished",
		zap.Int("checked", checked),
		zap.Int("mismatches", mismatches),
		zap.Duration("duration", time.Since(start)),
	)
}
