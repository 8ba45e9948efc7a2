package http

import (
	"context"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// SimulationServiceInterface defines the calculation operations the handlers need
type SimulationServiceInterface interface {
	Calculate(ctx context.Context, raw dca.RawRequest) (dca.SimulationResult, error)
	CalculateWithProgress(ctx context.Context, raw dca.RawRequest, fn dca.ProgressFunc) (dca.SimulationResult, error)
}
