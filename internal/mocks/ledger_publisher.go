package mocks

import (
	"context"

	"github.com/reputrack/creditledger/internal/model"
	"github.com/stretchr/testify/mock"
)

type LedgerPublisher struct {
	mock.Mock
}

func (m *LedgerPublisher) PublishCommitted(ctx context.Context, tx model.Transaction, balance int64) {
	m.Called(ctx, tx, balance)
}
