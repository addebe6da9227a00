package mocks

import (
	"context"

	"cardapi/internal/model"
	"cardapi/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Create(ctx context.Context, c *model.GeneratedCard) (*model.GeneratedCard, error) {
	args := m.Called(ctx, c)
	if f, ok := args.Get(0).(func(context.Context, *model.GeneratedCard) *model.GeneratedCard); ok {
		return f(ctx, c), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCard), args.Error(1)
}

func (m *MockCardRepository) FindByNumber(ctx context.Context, number string) (*model.GeneratedCard, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCard), args.Error(1)
}

func (m *MockCardRepository) UpdateDocument(ctx context.Context, number, storagePath string, pdfURL *string) error {
	args := m.Called(ctx, number, storagePath, pdfURL)
	return args.Error(0)
}

func (m *MockCardRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.GeneratedCard], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.GeneratedCard]), args.Error(1)
}
