package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/reputrack/creditledger/internal/constants"
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

func TestAssignment_Grant(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	cmd := service.GrantCommand{
		UserID: "u1",
		Amount: 500,
		Reason: "welcome",
		Source: model.SourcePlanPurchase,
	}

	t.Run("appends an assignment and updates the cache in one unit", func(t *testing.T) {
		ledger := &mocks.LedgerRepository{}
		cache := &mocks.BalanceCacheRepository{}
		users := &mocks.UserDirectory{}
		txm := &mocks.TxManager{}
		events := &mocks.LedgerPublisher{}

		users.On("Exists", "u1").Return(true, nil)
		txm.On("WithTx", mock.Anything, mock.Anything).Return(nil)

		ledger.On("Append", mock.Anything, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.UserID == "u1" &&
				tx.Kind == model.TxKindAssignment &&
				tx.Amount == 500 &&
				tx.Source == model.SourcePlanPurchase
		})).Run(func(args mock.Arguments) {
			tx := args.Get(1).(*model.Transaction)
			tx.ID = "tx-1"
			tx.Sequence = 1
		}).Return(nil)

		cache.On("Apply", mock.Anything, "u1", int64(500), int64(1)).Return(nil)
		ledger.On("FoldBalanceThroughSequence", "u1", int64(1)).Return(int64(500), nil)
		events.On("PublishCommitted", mock.Anything, mock.Anything, int64(500)).Return()

		svc := service.NewAssignmentService(ledger, cache, users, txm, events, logger, testMetrics)

		result, err := svc.Grant(ctx, cmd)
		require.NoError(t, err)

		assert.Equal(t, "tx-1", result.Transaction.ID)
		assert.Equal(t, int64(500), result.Balance)
		assert.False(t, result.Replayed)

		ledger.AssertExpectations(t)
		cache.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("unknown user fails with not found and no write", func(t *testing.T) {
		ledger := &mocks.LedgerRepository{}
		cache := &mocks.BalanceCacheRepository{}
		users := &mocks.UserDirectory{}
		txm := &mocks.TxManager{}
		events := &mocks.LedgerPublisher{}

		users.On("Exists", "ghost").Return(false, nil)

		svc := service.NewAssignmentService(ledger, cache, users, txm, events, logger, testMetrics)

		ghost := cmd
		ghost.UserID = "ghost"
		_, err := svc.Grant(ctx, ghost)
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeUserNotFound, serviceErr.Code)
		ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("non-positive amount is a validation failure", func(t *testing.T) {
		svc := service.NewAssignmentService(&mocks.LedgerRepository{}, &mocks.BalanceCacheRepository{},
			&mocks.UserDirectory{}, &mocks.TxManager{}, &mocks.LedgerPublisher{}, logger, testMetrics)

		bad := cmd
		bad.Amount = -5
		_, err := svc.Grant(ctx, bad)
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeValidationFailed, serviceErr.Code)
	})

	t.Run("existing idempotency key replays the stored grant", func(t *testing.T) {
		ledger := &mocks.LedgerRepository{}
		cache := &mocks.BalanceCacheRepository{}
		users := &mocks.UserDirectory{}
		txm := &mocks.TxManager{}
		events := &mocks.LedgerPublisher{}

		key := "payment:abc"
		stored := &model.Transaction{
			ID:             "tx-9",
			UserID:         "u1",
			Amount:         500,
			Kind:           model.TxKindAssignment,
			Source:         model.SourcePayment,
			Sequence:       4,
			IdempotencyKey: &key,
		}

		users.On("Exists", "u1").Return(true, nil)
		ledger.On("FindByIdempotencyKey", "u1", key).Return(stored, nil)
		ledger.On("FoldBalanceThroughSequence", "u1", int64(4)).Return(int64(720), nil)

		svc := service.NewAssignmentService(ledger, cache, users, txm, events, logger, testMetrics)

		replay := cmd
		replay.IdempotencyKey = key
		result, err := svc.Grant(ctx, replay)
		require.NoError(t, err)

		assert.True(t, result.Replayed)
		assert.Equal(t, "tx-9", result.Transaction.ID)
		assert.Equal(t, int64(720), result.Balance)
		ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("duplicate conflict with no replayable row is a storage failure", func(t *testing.T) {
		ledger := &mocks.LedgerRepository{}
		cache := &mocks.BalanceCacheRepository{}
		users := &mocks.UserDirectory{}
		txm := &mocks.TxManager{}
		events := &mocks.LedgerPublisher{}

		users.On("Exists", "u1").Return(true, nil)
		ledger.On("FindByIdempotencyKey", "u1", "key-1").Return(nil, gorm.ErrRecordNotFound)
		txm.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		ledger.On("Append", mock.Anything, mock.Anything).Return(repository.ErrTransactionExisted)

		svc := service.NewAssignmentService(ledger, cache, users, txm, events, logger, testMetrics)

		withKey := cmd
		withKey.IdempotencyKey = "key-1"
		_, err := svc.Grant(ctx, withKey)
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeStorageFailed, serviceErr.Code)
	})

	t.Run("storage failure surfaces as a retryable storage error", func(t *testing.T) {
		ledger := &mocks.LedgerRepository{}
		cache := &mocks.BalanceCacheRepository{}
		users := &mocks.UserDirectory{}
		txm := &mocks.TxManager{}
		events := &mocks.LedgerPublisher{}

		users.On("Exists", "u1").Return(true, nil)
		txm.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		ledger.On("Append", mock.Anything, mock.Anything).Return(gorm.ErrInvalidDB)

		svc := service.NewAssignmentService(ledger, cache, users, txm, events, logger, testMetrics)

		_, err := svc.Grant(ctx, cmd)
		require.Error(t, err)

		var serviceErr service.Error
		require.True(t, errors.As(err, &serviceErr))
		assert.Equal(t, constants.ErrCodeStorageFailed, serviceErr.Code)
	})
}
