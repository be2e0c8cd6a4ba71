package mocks

import (
	"context"

	"github.com/reputrack/creditledger/internal/model"
	"github.com/stretchr/testify/mock"
)

type BalanceCacheRepository struct {
	mock.Mock
}

func (m *BalanceCacheRepository) Get(userID string) (model.BalanceCache, error) {
	args := m.Called(userID)
	return args.Get(0).(model.BalanceCache), args.Error(1)
}

func (m *BalanceCacheRepository) Apply(ctx context.Context, userID string, delta, sequence int64) error {
	args := m.Called(ctx, userID, delta, sequence)
	return args.Error(0)
}

func (m *BalanceCacheRepository) Rewrite(ctx context.Context, userID string, balance, lastSequence, expectedSequence int64) (bool, error) {
	args := m.Called(ctx, userID, balance, lastSequence, expectedSequence)
	return args.Bool(0), args.Error(1)
}

func (m *BalanceCacheRepository) ListUserIDs(afterUserID string, limit int) ([]string, error) {
	args := m.Called(afterUserID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
