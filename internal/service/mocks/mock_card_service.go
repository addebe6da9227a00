package mocks

import (
	"context"
	"io"
	"time"

	"cardapi/internal/model"
	"cardapi/internal/service"
	"cardapi/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockCardService struct {
	mock.Mock
}

func (m *MockCardService) GenerateFromPayment(ctx context.Context, paymentID string) (*model.GeneratedCard, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCard), args.Error(1)
}

func (m *MockCardService) GenerateFromGiveaway(ctx context.Context, giveawayID string) (*model.GeneratedCard, error) {
	args := m.Called(ctx, giveawayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCard), args.Error(1)
}

func (m *MockCardService) Regenerate(ctx context.Context, number string) (*model.GeneratedCard, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCard), args.Error(1)
}

func (m *MockCardService) Get(ctx context.Context, number string) (*model.GeneratedCard, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCard), args.Error(1)
}

func (m *MockCardService) List(ctx context.Context, limit, offset int) (*service.CardListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CardListResult), args.Error(1)
}

func (m *MockCardService) Download(ctx context.Context, number string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockCardService) DownloadURL(ctx context.Context, number string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, number, expiry)
	return args.String(0), args.Error(1)
}
