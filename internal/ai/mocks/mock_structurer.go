package mocks

import (
	"context"

	"docjson/internal/ai"

	"github.com/stretchr/testify/mock"
)

type MockStructurer struct {
	mock.Mock
}

func (m *MockStructurer) Structure(ctx context.Context, text string) (ai.Result, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(ai.Result), args.Error(1)
}
