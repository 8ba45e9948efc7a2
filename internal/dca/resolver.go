package dca

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// TracerName identifies spans produced by the simulation pipeline.
const TracerName = "github.com/0rShemesh/InvestGraph/internal/dca"

// PricePoint is a daily close for a civil date.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSource loads daily closes. Implementations return ascending,
// de-duplicated points with positive closes inside [from, to].
type PriceSource interface {
	DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error)
}

// ProgressFunc is told how many of total purchase dates have prices so far.
type ProgressFunc func(resolved, total int)

// Source errors advertise their nature through these methods.
type notFoundError interface{ NotFound() bool }
type temporaryError interface{ Temporary() bool }

func isNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf) && nf.NotFound()
}

func isTemporary(err error) bool {
	var t temporaryError
	return errors.As(err, &t) && t.Temporary()
}

// ResolverConfig tunes price resolution.
type ResolverConfig struct {
	// LookbackDays is how many trading days past a purchase date may be
	// searched for a close.
	LookbackDays int
	// ChunkSize is the number of purchase dates covered by one source call.
	ChunkSize int
	// FanOut caps concurrent source calls.
	FanOut int
	// RetryBackoffs lists the waits between attempts; its length is the retry budget.
	RetryBackoffs []time.Duration
}

// DefaultResolverConfig returns production defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		LookbackDays:  5,
		ChunkSize:     12,
		FanOut:        4,
		RetryBackoffs: []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second},
	}
}

// Resolver maps purchase dates to closing prices.
type Resolver struct {
	source   PriceSource
	calendar MarketCalendar
	cfg      ResolverConfig
	logger   *slog.Logger
}

// NewResolver creates a resolver over source.
func NewResolver(source PriceSource, calendar MarketCalendar, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LookbackDays < 0 {
		cfg.LookbackDays = 0
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 12
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = 1
	}
	return &Resolver{
		source:   source,
		calendar: calendar,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "price_resolver")),
	}
}

// Resolve returns the first close on or after date within the lookback window.
func (r *Resolver) Resolve(ctx context.Context, ticker string, date time.Time) (PricePoint, error) {
	points, err := r.ResolveAll(ctx, ticker, []time.Time{date}, nil)
	if err != nil {
		return PricePoint{}, err
	}
	return points[0], nil
}

// ResolveAll resolves every date, fanning source calls out by chunk. The
// result is in the order of dates. Any failure cancels outstanding calls and
// no points are returned.
func (r *Resolver) ResolveAll(ctx context.Context, ticker string, dates []time.Time, progress ProgressFunc) ([]PricePoint, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	nChunks := (len(dates) + r.cfg.ChunkSize - 1) / r.cfg.ChunkSize
	series := make([][]PricePoint, nChunks)

	var (
		progressMu sync.Mutex
		resolved   int
	)
	report := func(n int) {
		if progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		resolved += n
		progress(resolved, len(dates))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FanOut)
	for c := 0; c < nChunks; c++ {
		lo := c * r.cfg.ChunkSize
		hi := min(lo+r.cfg.ChunkSize, len(dates))
		from := Date(dates[lo])
		to := r.calendar.AddTradingDays(dates[hi-1], r.cfg.LookbackDays)

		g.Go(func() error {
			pts, err := r.fetchChunk(gctx, ticker, from, to)
			if err != nil {
				return err
			}
			series[c] = pts
			report(hi - lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, r.classify(ctx, ticker, err)
	}

	// A single purchase window with no closes is a gap, not proof that the
	// symbol is unknown.
	empty := len(dates) > 1
	for _, s := range series {
		if len(s) > 0 {
			empty = false
			break
		}
	}
	if empty {
		return nil, newError(KindTickerNotFound, nil,
			"no data found for ticker %s between %s and %s", ticker,
			Date(dates[0]).Format(DateLayout), Date(dates[len(dates)-1]).Format(DateLayout))
	}

	out := make([]PricePoint, len(dates))
	for i, d := range dates {
		d = Date(d)
		limit := r.calendar.AddTradingDays(d, r.cfg.LookbackDays)
		p, ok := firstOnOrAfter(series[i/r.cfg.ChunkSize], d, limit)
		if !ok {
			return nil, newError(KindPriceDataUnavailable, nil,
				"no closing price for %s within %d trading days of %s", ticker, r.cfg.LookbackDays, d.Format(DateLayout))
		}
		out[i] = p
	}
	return out, nil
}

func (r *Resolver) fetchChunk(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, "resolver.chunk")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticker", ticker),
		attribute.String("from", from.Format(DateLayout)),
		attribute.String("to", to.Format(DateLayout)),
	)

	for attempt := 0; ; attempt++ {
		pts, err := r.source.DailyCloses(ctx, ticker, from, to)
		if err == nil {
			span.SetAttributes(attribute.Int("points", len(pts)))
			return pts, nil
		}
		if !isTemporary(err) || attempt >= len(r.cfg.RetryBackoffs) || ctx.Err() != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		wait := r.cfg.RetryBackoffs[attempt]
		r.logger.WarnContext(ctx, "price source call failed, retrying",
			slog.String("ticker", ticker),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// classify turns a source or context failure into a pipeline error. ctx is the
// caller's context, not the errgroup's.
func (r *Resolver) classify(ctx context.Context, ticker string, err error) error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fromContext(ctx, err)
	case isNotFound(err):
		return newError(KindTickerNotFound, err, "no data found for the specified ticker %s", ticker)
	case isTemporary(err):
		return newError(KindUpstreamTimeout, err,
			"price source unavailable after %d attempts", len(r.cfg.RetryBackoffs)+1)
	}
	return newError(KindInternal, err, "price lookup failed for %s", ticker)
}

// firstOnOrAfter finds the earliest point in [from, limit] of an ascending series.
func firstOnOrAfter(series []PricePoint, from, limit time.Time) (PricePoint, bool) {
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Date.Before(from)
	})
	if i == len(series) || series[i].Date.After(limit) {
		return PricePoint{}, false
	}
	return series[i], true
}

// String is used in log lines.
func (p PricePoint) String() string {
	return fmt.Sprintf("%s@%.4f", p.Date.Format(DateLayout), p.Close)
}
