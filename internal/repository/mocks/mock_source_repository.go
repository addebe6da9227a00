package mocks

import (
	"context"

	"cardapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) FindPayment(ctx context.Context, paymentID string) (*model.SourceRecord, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceRecord), args.Error(1)
}

func (m *MockSourceRepository) FindGiveaway(ctx context.Context, id string) (*model.SourceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceRecord), args.Error(1)
}
