package mocks

import (
	"context"

	"cardapi/internal/cardpdf"

	"github.com/stretchr/testify/mock"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Lookup(cardType string) (*cardpdf.CardTemplate, error) {
	args := m.Called(cardType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cardpdf.CardTemplate), args.Error(1)
}

func (m *MockPipeline) Generate(ctx context.Context, req cardpdf.RenderRequest) (*cardpdf.GeneratedDocument, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cardpdf.GeneratedDocument), args.Error(1)
}
