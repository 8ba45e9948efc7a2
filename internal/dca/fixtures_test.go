package dca

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeSourceError struct {
	msg       string
	notFound  bool
	temporary bool
}

func (e fakeSourceError) Error() string   { return e.msg }
func (e fakeSourceError) NotFound() bool  { return e.notFound }
func (e fakeSourceError) Temporary() bool { return e.temporary }

// fakeSource serves a deterministic close for every NYSE trading day.
type fakeSource struct {
	mu       sync.Mutex
	calendar *NYSECalendar
	tickers  map[string]float64 // base price per ticker
	missing  map[time.Time]bool
	failures int // temporary failures before the first success
	block    bool
	calls    atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calendar: NewNYSECalendar(),
		tickers:  map[string]float64{"AAPL": 100, "MSFT": 250},
		missing:  make(map[time.Time]bool),
	}
}

func (f *fakeSource) dropRange(from, to time.Time) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		f.missing[d] = true
	}
}

func (f *fakeSource) DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, fakeSourceError{msg: "upstream returned 503", temporary: true}
	}
	f.mu.Unlock()

	base, ok := f.tickers[ticker]
	if !ok {
		return nil, fakeSourceError{msg: "symbol not found", notFound: true}
	}

	var out []PricePoint
	for d := Date(from); !d.After(Date(to)); d = d.AddDate(0, 0, 1) {
		if !f.calendar.IsTradingDay(d) || f.missing[d] {
			continue
		}
		out = append(out, PricePoint{Date: d, Close: priceOn(base, d)})
	}
	return out, nil
}

// priceOn drifts the base price by day so every purchase sees a different close.
func priceOn(base float64, d time.Time) float64 {
	days := d.Sub(civil(2000, time.January, 1)).Hours() / 24
	return base + float64(int(days)%97)*0.37
}

var errBoom = errors.New("boom")

type brokenSource struct{}

func (brokenSource) DailyCloses(context.Context, string, time.Time, time.Time) ([]PricePoint, error) {
	return nil, errBoom
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newYorkNoon(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, MarketLocation())
}

func testResolverConfig() ResolverConfig {
	return ResolverConfig{
		LookbackDays:  5,
		ChunkSize:     3,
		FanOut:        4,
		RetryBackoffs: []time.Duration{time.Millisecond, time.Millisecond},
	}
}
