package dca

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Options configures a Simulator.
type Options struct {
	MaxMonths   int
	CalcTimeout time.Duration
	Resolver    ResolverConfig
	Calendar    MarketCalendar
	Now         func() time.Time
}

// Simulator runs the full pipeline: validate, schedule, resolve, fold, assemble.
// It keeps no per-calculation state and is safe for concurrent use.
type Simulator struct {
	opts      Options
	scheduler *Scheduler
	resolver  *Resolver
	logger    *slog.Logger
}

// NewSimulator wires a simulator over source.
func NewSimulator(source PriceSource, opts Options, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxMonths <= 0 {
		opts.MaxMonths = DefaultMaxMonths
	}
	if opts.Calendar == nil {
		opts.Calendar = NewNYSECalendar()
	}
	return &Simulator{
		opts:      opts,
		scheduler: NewScheduler(opts.Calendar, opts.Now),
		resolver:  NewResolver(source, opts.Calendar, opts.Resolver, logger),
		logger:    logger.With(slog.String("component", "simulator")),
	}
}

// Run executes one calculation.
func (s *Simulator) Run(ctx context.Context, raw RawRequest) (SimulationResult, error) {
	return s.RunWithProgress(ctx, raw, nil)
}

// RunWithProgress executes one calculation, reporting price resolution progress.
func (s *Simulator) RunWithProgress(ctx context.Context, raw RawRequest, progress ProgressFunc) (SimulationResult, error) {
	req, err := Validate(raw, s.opts.MaxMonths)
	if err != nil {
		return nil, err
	}

	if s.opts.CalcTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CalcTimeout)
		defer cancel()
	}

	ctx, span := otel.Tracer(TracerName).Start(ctx, "simulator.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticker", req.Ticker()),
		attribute.Int("num_months", req.NumMonths()),
		attribute.Int("start_day", req.StartDay()),
	)

	result, err := s.run(ctx, req, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *Simulator) run(ctx context.Context, req InvestmentRequest, progress ProgressFunc) (SimulationResult, error) {
	schedule, err := s.scheduler.Schedule(req)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(schedule))
	for i, p := range schedule {
		dates[i] = p.Effective
	}
	s.logger.DebugContext(ctx, "purchase schedule built",
		slog.String("ticker", req.Ticker()),
		slog.String("first", dates[0].Format(DateLayout)),
		slog.String("last", dates[len(dates)-1].Format(DateLayout)))

	prices, err := s.resolver.ResolveAll(ctx, req.Ticker(), dates, progress)
	if err != nil {
		return nil, err
	}

	steps, err := Fold(req.MonthlyInvestment(), prices)
	if err != nil {
		return nil, err
	}
	return Assemble(steps), nil
}
