package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// MockCalculator is a mock for the Calculator interface
type MockCalculator struct {
	mock.Mock
}

func (m *MockCalculator) RunWithProgress(ctx context.Context, raw dca.RawRequest, progress dca.ProgressFunc) (dca.SimulationResult, error) {
	args := m.Called(ctx, raw, progress)
	result, _ := args.Get(0).(dca.SimulationResult)
	return result, args.Error(1)
}

// MockChecker is a mock for the Checker interface
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
