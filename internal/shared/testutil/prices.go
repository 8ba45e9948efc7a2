package testutil

import (
	"time"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	"github.com/0rShemesh/InvestGraph/internal/marketdata"
)

// PriceOn is the deterministic synthetic close used by SeedPrices: base plus
// a sawtooth of up to 35.52 keyed on the day number.
func PriceOn(base float64, d time.Time) float64 {
	days := int(dca.Date(d).Sub(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).Hours() / 24)
	return base + float64(days%97)*0.37
}

// SeedPrices fills src with a close for every NYSE trading day in [from, to].
func SeedPrices(src *marketdata.MemorySource, ticker string, base float64, from, to time.Time) {
	cal := dca.NewNYSECalendar()
	var pts []dca.PricePoint
	for d := dca.Date(from); !d.After(dca.Date(to)); d = d.AddDate(0, 0, 1) {
		if cal.IsTradingDay(d) {
			pts = append(pts, dca.PricePoint{Date: d, Close: PriceOn(base, d)})
		}
	}
	src.Add(ticker, pts...)
}

// NewSeededSource returns a memory source holding AAPL (base 100) and MSFT
// (base 250) closes from 2015 through 2024.
func NewSeededSource() *marketdata.MemorySource {
	src := marketdata.NewMemorySource()
	from := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	SeedPrices(src, "AAPL", 100, from, to)
	SeedPrices(src, "MSFT", 250, from, to)
	return src
}

// FixedClock returns a clock stuck at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
