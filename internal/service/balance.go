package service

import (
	"context"
	"errors"
	"time"

	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/metrics"
	"github.com/reputrack/creditledger/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BalanceService derives balances from the transaction log. The cache row is
// a shortcut; every answer here is reproducible by folding the log.
type BalanceService interface {
	Current(userID string) (int64, error)
	At(userID string, t time.Time) (int64, error)
	History(userID string, limit int) ([]HistoryEntry, error)
	Reconcile(ctx context.Context, userID string) (ReconcileResult, error)
}

type balanceService struct {
	ledger    repository.LedgerRepository
	cache     repository.BalanceCacheRepository
	txManager repository.TxManager
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewBalanceService(ledger repository.LedgerRepository, cache repository.BalanceCacheRepository,
	txManager repository.TxManager, log *zap.Logger, metrics *metrics.Metrics) BalanceService {
	return &balanceService{ledger: ledger, cache: cache, txManager: txManager, log: log, metrics: metrics}
}

func (s *balanceService) Current(userID string) (int64, error) {
	start := time.Now()

	bc, err := s.cache.Get(userID)
	if err == nil {
		s.metrics.RecordDBQuery("select", "balance_caches", "success", time.Since(start))
		return bc.Balance, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.RecordDBQuery("select", "balance_caches", "error", time.Since(start))
		return 0, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	// No cache row yet: fold the log. The cache is only ever written inside
	// an append's transaction, so a miss is answered without warming it.
	balance, err := s.ledger.FoldBalance(userID, nil)
	if err != nil {
		return 0, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	return balance, nil
}

func (s *balanceService) At(userID string, t time.Time) (int64, error) {
	balance, err := s.ledger.FoldBalance(userID, &t)
	if err != nil {
		return 0, NewServiceError(constants.ErrCodeStorageFailed, err)
	}
	return balance, nil
}

func (s *balanceService) History(userID string, limit int) ([]HistoryEntry, error) {
	txs, err := s.ledger.ListByUser(userID, repository.ListFilter{Limit: limit})
	if err != nil {
		return nil, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	entries := make([]HistoryEntry, 0, len(txs))
	var running int64
	for _, tx := range txs {
		running += tx.SignedAmount()
		entries = append(entries, HistoryEntry{Transaction: tx, RunningBalance: running})
	}

	return entries, nil
}

func (s *balanceService) Reconcile(ctx context.Context, userID string) (ReconcileResult, error) {
	bc, err := s.cache.Get(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.reconcileMissing(ctx, userID)
		}
		return ReconcileResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	// Transactions at or below the cached sequence are immutable, so this
	// comparison cannot race an append committing while we fold.
	computed, err := s.ledger.FoldBalanceThroughSequence(userID, bc.LastSequence)
	if err != nil {
		return ReconcileResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	result := ReconcileResult{UserID: userID, Cached: bc.Balance, Computed: computed}

	if bc.Balance == computed {
		s.metrics.RecordReconciliation("ok")
		return result, nil
	}

	lastSeq, err := s.ledger.MaxSequence(userID)
	if err != nil {
		return result, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	balance := computed
	if lastSeq != bc.LastSequence {
		balance, err = s.ledger.FoldBalanceThroughSequence(userID, lastSeq)
		if err != nil {
			return result, NewServiceError(constants.ErrCodeStorageFailed, err)
		}
	}

	return s.rebuild(ctx, result, balance, lastSeq, bc.LastSequence)
}

// Every append upserts the cache row inside its own transaction, so a user
// with committed transactions must have one. A missing row over a non-empty
// log is rebuilt like any other divergence.
func (s *balanceService) reconcileMissing(ctx context.Context, userID string) (ReconcileResult, error) {
	lastSeq, err := s.ledger.MaxSequence(userID)
	if err != nil {
		return ReconcileResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	result := ReconcileResult{UserID: userID}
	if lastSeq == 0 {
		s.metrics.RecordReconciliation("ok")
		return result, nil
	}

	computed, err := s.ledger.FoldBalanceThroughSequence(userID, lastSeq)
	if err != nil {
		return ReconcileResult{}, NewServiceError(constants.ErrCodeStorageFailed, err)
	}
	result.Computed = computed

	return s.rebuild(ctx, result, computed, lastSeq, 0)
}

// rebuild writes the refolded balance guarded by the sequence observed at
// detection time. If the row advanced in the meantime the write is skipped;
// the next pass re-checks from the new sequence.
func (s *balanceService) rebuild(ctx context.Context, result ReconcileResult,
	balance, lastSeq, expectedSeq int64) (ReconcileResult, error) {
	s.metrics.RecordReconciliation("mismatch")
	s.log.Error("Balance cache diverged from ledger",
		zap.String("user_id", result.UserID),
		zap.Int64("cached", result.Cached),
		zap.Int64("computed", result.Computed),
	)

	var applied bool
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.cache.Rewrite(ctx, result.UserID, balance, lastSeq, expectedSeq)
		return err
	})
	if err != nil {
		return result, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	if !applied {
		s.log.Warn("Skipped cache rebuild, row advanced during reconciliation",
			zap.String("user_id", result.UserID),
		)
	}
	result.Rebuilt = applied

	return result, NewServiceError(constants.ErrCodeDataIntegrity, DataIntegrityError{
		UserID:   result.UserID,
		Cached:   result.Cached,
		Computed: result.Computed,
	})
}
