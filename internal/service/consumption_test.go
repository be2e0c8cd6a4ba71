package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/lock"
	"github.com/reputrack/creditledger/internal/mocks"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/repository"
	"github.com/reputrack/creditledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testLockConfig() lock.Config {
	return lock.Config{
		TTL:            time.Second,
		AcquireTimeout: 200 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
	}
}

func newConsumptionFixture() (*memoryLedger, *memoryCache, service.ConsumptionService, service.AssignmentService) {
	logger := zap.NewNop()
	ledger := newMemoryLedger()
	cache := newMemoryCache()
	txm := inlineTxManager{}
	locks := lock.NewLocalManager(testLockConfig())

	events := &mocks.LedgerPublisher{}
	events.On("PublishCommitted", mock.Anything, mock.Anything, mock.Anything).Maybe()

	users := &mocks.UserDirectory{}
	users.On("Exists", mock.Anything).Return(true, nil)

	balances := service.NewBalanceService(ledger, cache, txm, logger, testMetrics)
	consumptions := service.NewConsumptionService(ledger, cache, balances, txm, locks, events, logger, testMetrics)
	assignments := service.NewAssignmentService(ledger, cache, users, txm, events, logger, testMetrics)
	return ledger, cache, consumptions, assignments
}

func TestConsumption_RequestConsumption(t *testing.T) {
	ctx := context.Background()

	t.Run("grant then consume leaves the net balance", func(t *testing.T) {
		_, _, consumptions, assignments := newConsumptionFixture()

		_, err := assignments.Grant(ctx, service.GrantCommand{
			UserID: "u1", Amount: 500, Reason: "welcome", Source: model.SourcePromotional,
		})
		require.NoError(t, err)

		result, err := consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 150, Reason: "search",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(350), result.Balance)
		assert.Equal(t, model.TxKindConsumption, result.Transaction.Kind)
		assert.Equal(t, int64(150), result.Transaction.Amount)
		assert.Equal(t, int64(2), result.Transaction.Sequence)
	})

	t.Run("insufficient balance rejects without writing", func(t *testing.T) {
		ledger, _, consumptions, assignments := newConsumptionFixture()

		_, err := assignments.Grant(ctx, service.GrantCommand{
			UserID: "u1", Amount: 100, Reason: "welcome", Source: model.SourcePromotional,
		})
		require.NoError(t, err)

		_, err = consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 150, Reason: "search",
		})
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeInsufficientBalance, serviceErr.Code)

		var insufficientErr service.InsufficientBalanceError
		require.True(t, errors.As(err, &insufficientErr))
		assert.Equal(t, int64(100), insufficientErr.Available)
		assert.Equal(t, int64(150), insufficientErr.Requested)

		balance, err := ledger.FoldBalance("u1", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
	})

	t.Run("non-positive amount rejected before touching the store", func(t *testing.T) {
		ledger, _, consumptions, _ := newConsumptionFixture()

		_, err := consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 0, Reason: "search",
		})
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeValidationFailed, serviceErr.Code)
		assert.Empty(t, ledger.txs)
	})

	t.Run("two concurrent consumptions cannot both succeed on one budget", func(t *testing.T) {
		ledger, _, consumptions, assignments := newConsumptionFixture()

		_, err := assignments.Grant(ctx, service.GrantCommand{
			UserID: "u1", Amount: 100, Reason: "welcome", Source: model.SourcePromotional,
		})
		require.NoError(t, err)

		results := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = consumptions.RequestConsumption(ctx, service.ConsumeCommand{
					UserID: "u1", Amount: 60, Reason: "search",
				})
			}(i)
		}
		wg.Wait()

		succeeded, insufficient := 0, 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			var serviceErr service.Error
			require.True(t, errors.As(err, &serviceErr))
			assert.Equal(t, constants.ErrCodeInsufficientBalance, serviceErr.Code)
			insufficient++
		}

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, insufficient)

		balance, err := ledger.FoldBalance("u1", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(40), balance)
	})

	t.Run("concurrent requests with one idempotency key deduct once", func(t *testing.T) {
		ledger, _, consumptions, assignments := newConsumptionFixture()

		_, err := assignments.Grant(ctx, service.GrantCommand{
			UserID: "u1", Amount: 100, Reason: "welcome", Source: model.SourcePromotional,
		})
		require.NoError(t, err)

		results := make([]service.ConsumeResult, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = consumptions.RequestConsumption(ctx, service.ConsumeCommand{
					UserID: "u1", Amount: 50, Reason: "search", IdempotencyKey: "abc",
				})
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		assert.Equal(t, results[0].Transaction.ID, results[1].Transaction.ID)
		assert.Equal(t, results[0].Balance, results[1].Balance)
		assert.Equal(t, int64(50), results[0].Balance)

		balance, err := ledger.FoldBalance("u1", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance)
	})

	t.Run("replaying a committed key returns the original result", func(t *testing.T) {
		ledger, _, consumptions, assignments := newConsumptionFixture()

		_, err := assignments.Grant(ctx, service.GrantCommand{
			UserID: "u1", Amount: 200, Reason: "welcome", Source: model.SourcePromotional,
		})
		require.NoError(t, err)

		first, err := consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 80, Reason: "report", IdempotencyKey: "key-1",
		})
		require.NoError(t, err)
		assert.False(t, first.Replayed)

		// A later unrelated consumption must not change what the replay
		// reports.
		_, err = consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 30, Reason: "search",
		})
		require.NoError(t, err)

		replay, err := consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 80, Reason: "report", IdempotencyKey: "key-1",
		})
		require.NoError(t, err)

		assert.True(t, replay.Replayed)
		assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)
		assert.Equal(t, first.Balance, replay.Balance)

		consumptionKind := model.TxKindConsumption
		txs, err := ledger.ListByUser("u1", repository.ListFilter{Kind: &consumptionKind})
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("duplicate conflict with no replayable row is a storage failure", func(t *testing.T) {
		logger := zap.NewNop()
		ledger := &mocks.LedgerRepository{}
		cache := &mocks.BalanceCacheRepository{}
		balances := &mocks.BalanceService{}
		txm := &mocks.TxManager{}
		locks := lock.NewLocalManager(testLockConfig())
		events := &mocks.LedgerPublisher{}

		ledger.On("FindByIdempotencyKey", "u1", "key-1").Return(nil, gorm.ErrRecordNotFound)
		balances.On("Current", "u1").Return(int64(100), nil)
		txm.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		ledger.On("Append", mock.Anything, mock.Anything).Return(repository.ErrTransactionExisted)

		consumptions := service.NewConsumptionService(ledger, cache, balances, txm, locks, events, logger, testMetrics)

		_, err := consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 50, Reason: "search", IdempotencyKey: "key-1",
		})
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeStorageFailed, serviceErr.Code)
	})

	t.Run("held lock times out with a retryable error", func(t *testing.T) {
		logger := zap.NewNop()
		ledger := newMemoryLedger()
		cache := newMemoryCache()
		txm := inlineTxManager{}
		locks := lock.NewLocalManager(testLockConfig())

		events := &mocks.LedgerPublisher{}
		balances := service.NewBalanceService(ledger, cache, txm, logger, testMetrics)
		consumptions := service.NewConsumptionService(ledger, cache, balances, txm, locks, events, logger, testMetrics)

		release, err := locks.Acquire(ctx, "u1")
		require.NoError(t, err)
		defer release(ctx)

		_, err = consumptions.RequestConsumption(ctx, service.ConsumeCommand{
			UserID: "u1", Amount: 10, Reason: "search",
		})
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeLockTimeout, serviceErr.Code)
		assert.True(t, errors.Is(err, lock.ErrAcquireTimeout))
		assert.Empty(t, ledger.txs)
	})
}
