package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockNumberRegistry struct {
	mock.Mock
}

func (m *MockNumberRegistry) Reserve(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockNumberRegistry) Release(ctx context.Context, number string) error {
	args := m.Called(ctx, number)
	return args.Error(0)
}
