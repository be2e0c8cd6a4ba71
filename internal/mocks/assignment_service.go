package mocks

import (
	"context"

	"github.com/reputrack/creditledger/internal/service"
	"github.com/stretchr/testify/mock"
)

type AssignmentService struct {
	mock.Mock
}

func (m *AssignmentService) Grant(ctx context.Context, cmd service.GrantCommand) (service.GrantResult, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(service.GrantResult), args.Error(1)
}
