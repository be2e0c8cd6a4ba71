package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/lock"
	"github.com/reputrack/creditledger/internal/metrics"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/publishers"
	"github.com/reputrack/creditledger/internal/repository"
	"go.uber.org/zap"
)

// ConsumptionService is the check-and-debit path. The balance read and the
// consumption append happen inside one per-user exclusive section so two
// concurrent requests can never both observe a sufficient balance.
type ConsumptionService interface {
	RequestConsumption(ctx context.Context, cmd ConsumeCommand) (ConsumeResult, error)
}

type consumptionService struct {
	ledger    repository.LedgerRepository
	cache     repository.BalanceCacheRepository
	balances  BalanceService
	txManager repository.TxManager
	locks     lock.Manager
	events    publishers.LedgerPublisher
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewConsumptionService(ledger repository.LedgerRepository, cache repository.BalanceCacheRepository,
	balances BalanceService, txManager repository.TxManager, locks lock.Manager,
	events publishers.LedgerPublisher, log *zap.Logger, metrics *metrics.Metrics) ConsumptionService {
	return &consumptionService{
		ledger:    ledger,
		cache:     cache,
		balances:  balances,
		txManager: txManager,
		locks:     locks,
		events:    events,
		log:       log,
		metrics:   metrics,
	}
}

func (s *consumptionService) RequestConsumption(ctx context.Context, cmd ConsumeCommand) (ConsumeResult, error) {
	start := time.Now()

	if cmd.Amount <= 0 {
		return ConsumeResult{}, NewServiceError(constants.ErrCodeValidationFailed,
			fmt.Errorf("consumption amount must be positive, got %d", cmd.Amount))
	}

	if cmd.IdempotencyKey != "" {
		if result, ok, err := s.replay(cmd.UserID, cmd.IdempotencyKey); err != nil {
			return ConsumeResult{}, err
		} else if ok {
			return result, nil
		}
	}

	lockStart := time.Now()
	release, err := s.locks.Acquire(ctx, cmd.UserID)
	s.metrics.RecordLockWait(time.Since(lockStart))
	if err != nil {
		if errors.Is(err, lock.ErrAcquireTimeout) {
			s.metrics.RecordConsumption("lock_timeout")
			s.log.Warn("Balance lock acquisition timed out",
				zap.String("user_id", cmd.UserID),
				zap.Duration("waited", time.Since(lockStart)),
			)
			return ConsumeResult{}, NewServiceError(constants.ErrCodeLockTimeout, err)
		}
		return ConsumeResult{}, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	// The section is held. Commit or reject runs to completion from here on;
	// releasing uses a fresh context so caller cancellation cannot leak the
	// lock, and the commit itself ignores cancellation to avoid a partial
	// write.
	commitCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := release(commitCtx); err != nil {
			s.log.Error("Failed to release balance lock",
				zap.String("user_id", cmd.UserID),
				zap.Error(err),
			)
		}
	}()

	available, err := s.balances.Current(cmd.UserID)
	if err != nil {
		return ConsumeResult{}, err
	}

	if available < cmd.Amount {
		s.metrics.RecordConsumption("insufficient")
		s.log.Info("Consumption rejected, insufficient balance",
			zap.String("user_id", cmd.UserID),
			zap.Int64("available", available),
			zap.Int64("requested", cmd.Amount),
		)
		return ConsumeResult{}, NewServiceError(constants.ErrCodeInsufficientBalance,
			InsufficientBalanceError{Available: available, Requested: cmd.Amount})
	}

	tx := model.Transaction{
		UserID: cmd.UserID,
		Amount: cmd.Amount,
		Kind:   model.TxKindConsumption,
		Reason: cmd.Reason,
	}
	if cmd.IdempotencyKey != "" {
		key := cmd.IdempotencyKey
		tx.IdempotencyKey = &key
	}

	err = s.txManager.WithTx(commitCtx, func(ctx context.Context) error {
		if err := s.ledger.Append(ctx, &tx); err != nil {
			return err
		}
		return s.cache.Apply(ctx, cmd.UserID, -tx.Amount, tx.Sequence)
	})

	if errors.Is(err, repository.ErrTransactionExisted) {
		result, ok, rerr := s.replay(cmd.UserID, cmd.IdempotencyKey)
		if rerr != nil {
			return ConsumeResult{}, rerr
		}
		if !ok {
			return ConsumeResult{}, NewServiceError(constants.ErrCodeStorageFailed,
				fmt.Errorf("idempotency key %q conflicted but no transaction was found", cmd.IdempotencyKey))
		}
		return result, nil
	}
	if err != nil {
		s.metrics.RecordConsumption("error")
		s.log.Error("Failed to commit consumption",
			zap.String("user_id", cmd.UserID),
			zap.Int64("amount", cmd.Amount),
			zap.Error(err),
		)
		return ConsumeResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	balance := available - cmd.Amount

	s.metrics.RecordConsumption("committed")
	s.events.PublishCommitted(commitCtx, tx, balance)

	s.log.Info("Consumption committed",
		zap.String("user_id", cmd.UserID),
		zap.Int64("amount", cmd.Amount),
		zap.Int64("balance", balance),
		zap.Int64("sequence", tx.Sequence),
		zap.Duration("duration", time.Since(start)),
	)

	return ConsumeResult{Transaction: tx, Balance: balance}, nil
}

func (s *consumptionService) replay(userID, key string) (ConsumeResult, bool, error) {
	existing, err := s.ledger.FindByIdempotencyKey(userID, key)
	if err != nil {
		if isNotFound(err) {
			return ConsumeResult{}, false, nil
		}
		return ConsumeResult{}, false, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	balance, err := s.ledger.FoldBalanceThroughSequence(userID, existing.Sequence)
	if err != nil {
		return ConsumeResult{}, false, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	s.metrics.RecordIdempotentReplay()
	s.log.Info("Idempotent consumption replayed",
		zap.String("user_id", userID),
		zap.String("idempotency_key", key),
	)

	return ConsumeResult{Transaction: *existing, Balance: balance, Replayed: true}, true, nil
}
