package mocks

import (
	"context"
	"time"

	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/repository"
	"github.com/stretchr/testify/mock"
)

type LedgerRepository struct {
	mock.Mock
}

func (m *LedgerRepository) Append(ctx context.Context, tx *model.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *LedgerRepository) FindByIdempotencyKey(userID, key string) (*model.Transaction, error) {
	args := m.Called(userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *LedgerRepository) ListByUser(userID string, filter repository.ListFilter) ([]model.Transaction, error) {
	args := m.Called(userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Transaction), args.Error(1)
}

func (m *LedgerRepository) FoldBalance(userID string, until *time.Time) (int64, error) {
	args := m.Called(userID, until)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LedgerRepository) FoldBalanceThroughSequence(userID string, sequence int64) (int64, error) {
	args := m.Called(userID, sequence)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LedgerRepository) MaxSequence(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LedgerRepository) StreamRange(userID string, from, to time.Time, fn func(model.Transaction) error) error {
	args := m.Called(userID, from, to, fn)
	return args.Error(0)
}

func (m *LedgerRepository) TopConsumers(from, to time.Time, limit int) ([]repository.ConsumerTotal, error) {
	args := m.Called(from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ConsumerTotal), args.Error(1)
}
