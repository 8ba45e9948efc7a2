package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	"github.com/0rShemesh/InvestGraph/internal/infrastructure"
)

// Calculator runs one simulation. *dca.Simulator implements it.
type Calculator interface {
	RunWithProgress(ctx context.Context, raw dca.RawRequest, progress dca.ProgressFunc) (dca.SimulationResult, error)
}

// SimulationService runs calculations and records their telemetry.
type SimulationService struct {
	calc    Calculator
	metrics *infrastructure.BusinessMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewSimulationService creates a simulation service. metrics may be nil.
func NewSimulationService(calc Calculator, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *SimulationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulationService{
		calc:    calc,
		metrics: metrics,
		tracer:  otel.Tracer(infrastructure.MeterName),
		logger:  logger.With(slog.String("component", "simulation_service")),
	}
}

// Calculate runs a calculation to completion.
func (s *SimulationService) Calculate(ctx context.Context, raw dca.RawRequest) (dca.SimulationResult, error) {
	return s.CalculateWithProgress(ctx, raw, nil)
}

// CalculateWithProgress runs a calculation, forwarding price resolution
// progress to fn when it is non-nil.
func (s *SimulationService) CalculateWithProgress(ctx context.Context, raw dca.RawRequest, fn dca.ProgressFunc) (dca.SimulationResult, error) {
	ctx, span := s.tracer.Start(ctx, "SimulationService.Calculate",
		trace.WithAttributes(
			attribute.String("ticker", raw.Ticker),
			attribute.Int("num_months", raw.NumMonths),
		))
	defer span.End()

	done := s.metrics.CalculationStarted(ctx)
	defer done()

	start := time.Now()
	result, err := s.calc.RunWithProgress(ctx, raw, fn)
	elapsed := time.Since(start)
	s.metrics.RecordCalculation(ctx, elapsed, err)

	attrs := []slog.Attr{
		slog.String("ticker", raw.Ticker),
		slog.Int("num_months", raw.NumMonths),
		slog.Int("start_day", raw.StartDay),
		slog.Duration("duration", elapsed),
	}

	if err != nil {
		kind := dca.KindOf(err)
		span.SetAttributes(attribute.String("error.kind", kind.String()))
		attrs = append(attrs, slog.String("kind", kind.String()), slog.String("error", err.Error()))

		switch kind {
		case dca.KindInvalidInput, dca.KindCanceled:
			s.logger.LogAttrs(ctx, slog.LevelInfo, "calculation rejected", attrs...)
		case dca.KindTickerNotFound, dca.KindPriceDataUnavailable:
			s.logger.LogAttrs(ctx, slog.LevelWarn, "calculation failed", attrs...)
		default:
			span.SetStatus(codes.Error, err.Error())
			s.logger.LogAttrs(ctx, slog.LevelError, "calculation failed", attrs...)
		}
		return nil, err
	}

	if last, ok := result.Last(); ok {
		attrs = append(attrs,
			slog.Int("records", len(result)),
			slog.Float64("total_invested", last.TotalInvested),
			slog.Float64("current_value", last.CurrentValue))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "calculation completed", attrs...)
	return result, nil
}
