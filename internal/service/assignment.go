package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/metrics"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/publishers"
	"github.com/reputrack/creditledger/internal/repository"
	"go.uber.org/zap"
)

// AssignmentService creates credit grants. Grants only increase a balance,
// so they take no per-user lock and have no balance precondition.
type AssignmentService interface {
	Grant(ctx context.Context, cmd GrantCommand) (GrantResult, error)
}

type assignmentService struct {
	ledger    repository.LedgerRepository
	cache     repository.BalanceCacheRepository
	users     repository.UserDirectory
	txManager repository.TxManager
	events    publishers.LedgerPublisher
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewAssignmentService(ledger repository.LedgerRepository, cache repository.BalanceCacheRepository,
	users repository.UserDirectory, txManager repository.TxManager, events publishers.LedgerPublisher,
	log *zap.Logger, metrics *metrics.Metrics) AssignmentService {
	return &assignmentService{
		ledger:    ledger,
		cache:     cache,
		users:     users,
		txManager: txManager,
		events:    events,
		log:       log,
		metrics:   metrics,
	}
}

func (s *assignmentService) Grant(ctx context.Context, cmd GrantCommand) (GrantResult, error) {
	start := time.Now()

	if cmd.Amount <= 0 {
		return GrantResult{}, NewServiceError(constants.ErrCodeValidationFailed,
			fmt.Errorf("grant amount must be positive, got %d", cmd.Amount))
	}

	exists, err := s.users.Exists(cmd.UserID)
	if err != nil {
		return GrantResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}
	if !exists {
		s.metrics.RecordGrant(cmd.Source, "user_not_found")
		return GrantResult{}, NewServiceError(constants.ErrCodeUserNotFound,
			fmt.Errorf("unknown user %q", cmd.UserID))
	}

	if cmd.IdempotencyKey != "" {
		if result, ok, err := s.replay(cmd.UserID, cmd.IdempotencyKey); err != nil {
			return GrantResult{}, err
		} else if ok {
			return result, nil
		}
	}

	tx := model.Transaction{
		UserID: cmd.UserID,
		Amount: cmd.Amount,
		Kind:   model.TxKindAssignment,
		Reason: cmd.Reason,
		Source: cmd.Source,
	}
	if cmd.IdempotencyKey != "" {
		key := cmd.IdempotencyKey
		tx.IdempotencyKey = &key
	}

	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.Append(ctx, &tx); err != nil {
			return err
		}
		return s.cache.Apply(ctx, cmd.UserID, tx.Amount, tx.Sequence)
	})

	if errors.Is(err, repository.ErrTransactionExisted) {
		// Lost the unique-index race to a concurrent retry with the same key.
		result, ok, rerr := s.replay(cmd.UserID, cmd.IdempotencyKey)
		if rerr != nil {
			return GrantResult{}, rerr
		}
		if !ok {
			return GrantResult{}, NewServiceError(constants.ErrCodeStorageFailed,
				fmt.Errorf("idempotency key %q conflicted but no transaction was found", cmd.IdempotencyKey))
		}
		return result, nil
	}
	if err != nil {
		s.metrics.RecordGrant(cmd.Source, "error")
		s.log.Error("Failed to commit grant",
			zap.String("user_id", cmd.UserID),
			zap.Int64("amount", cmd.Amount),
			zap.Error(err),
		)
		return GrantResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	balance, err := s.ledger.FoldBalanceThroughSequence(cmd.UserID, tx.Sequence)
	if err != nil {
		return GrantResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	s.metrics.RecordGrant(cmd.Source, "committed")
	s.events.PublishCommitted(ctx, tx, balance)

	s.log.Info("Credit grant committed",
		zap.String("user_id", cmd.UserID),
		zap.Int64("amount", cmd.Amount),
		zap.String("source", cmd.Source),
		zap.Int64("sequence", tx.Sequence),
		zap.Duration("duration", time.Since(start)),
	)

	return GrantResult{Transaction: tx, Balance: balance}, nil
}

func (s *assignmentService) replay(userID, key string) (GrantResult, bool, error) {
	existing, err := s.ledger.FindByIdempotencyKey(userID, key)
	if err != nil {
		if isNotFound(err) {
			return GrantResult{}, false, nil
		}
		return GrantResult{}, false, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	balance, err := s.ledger.FoldBalanceThroughSequence(userID, existing.Sequence)
	if err != nil {
		return GrantResult{}, false, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	s.metrics.RecordIdempotentReplay()
	s.log.Info("Idempotent grant replayed",
		zap.String("user_id", userID),
		zap.String("idempotency_key", key),
	)

	return GrantResult{Transaction: *existing, Balance: balance, Replayed: true}, true, nil
}
