package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, path, mimeType string) (string, error) {
	args := m.Called(ctx, path, mimeType)
	return args.String(0), args.Error(1)
}
