package marketdata

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// Source is a daily close provider.
type Source = dca.PriceSource

// Observer is told the outcome of every lookup made through Observe or a
// CachedSource. Outcomes are "ok", "empty", "not_found", "error", "hit" and "miss".
type Observer func(ctx context.Context, source, outcome string)

// Observe wraps src so every call is reported to obs under name.
func Observe(src Source, name string, obs Observer) Source {
	if obs == nil {
		return src
	}
	return &observed{src: src, name: name, obs: obs}
}

type observed struct {
	src  Source
	name string
	obs  Observer
}

func (o *observed) DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]dca.PricePoint, error) {
	pts, err := o.src.DailyCloses(ctx, ticker, from, to)
	o.obs(ctx, o.name, outcome(pts, err))
	return pts, err
}

// Unwrap exposes the wrapped source for readiness checks.
func (o *observed) Unwrap() Source { return o.src }

func outcome(pts []dca.PricePoint, err error) string {
	switch {
	case err == nil && len(pts) == 0:
		return "empty"
	case err == nil:
		return "ok"
	}
	var se *SourceError
	if errors.As(err, &se) && se.NotFound() {
		return "not_found"
	}
	return "error"
}

// normalize sorts points by date and drops duplicates, keeping the last one seen.
func normalize(pts []dca.PricePoint) []dca.PricePoint {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	out := pts[:0]
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// newLimiter returns an unlimited limiter when rps is not positive.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
