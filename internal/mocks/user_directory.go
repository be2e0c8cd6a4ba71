package mocks

import "github.com/stretchr/testify/mock"

type UserDirectory struct {
	mock.Mock
}

func (m *UserDirectory) Exists(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}
