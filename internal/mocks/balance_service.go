package mocks

import (
	"context"
	"time"

	"github.com/reputrack/creditledger/internal/service"
	"github.com/stretchr/testify/mock"
)

type BalanceService struct {
	mock.Mock
}

func (m *BalanceService) Current(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *BalanceService) At(userID string, t time.Time) (int64, error) {
	args := m.Called(userID, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *BalanceService) History(userID string, limit int) ([]service.HistoryEntry, error) {
	args := m.Called(userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.HistoryEntry), args.Error(1)
}

func (m *BalanceService) Reconcile(ctx context.Context, userID string) (service.ReconcileResult, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(service.ReconcileResult), args.Error(1)
}
