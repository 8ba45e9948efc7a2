package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// MemorySourceName labels in-memory calls in logs and metrics.
const MemorySourceName = "memory"

// MemorySource serves closes held in memory. It backs tests and the offline
// "memory" provider.
type MemorySource struct {
	mu     sync.RWMutex
	series map[string][]dca.PricePoint
	calls  atomic.Int64
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{series: make(map[string][]dca.PricePoint)}
}

// Add merges points into ticker's series.
func (m *MemorySource) Add(ticker string, pts ...dca.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticker = strings.ToUpper(ticker)
	merged := append(append([]dca.PricePoint(nil), m.series[ticker]...), pts...)
	for i := range merged {
		merged[i].Date = dca.Date(merged[i].Date)
	}
	m.series[ticker] = normalize(merged)
}

// LoadCSV reads "ticker,date,close" rows. A header row is skipped.
func (m *MemorySource) LoadCSV(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read fixture line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(rec[0], "ticker") {
			continue
		}
		d, err := time.Parse(dca.DateLayout, rec[1])
		if err != nil {
			return fmt.Errorf("fixture line %d: bad date %q: %w", line, rec[1], err)
		}
		closePrice, err := strconv.ParseFloat(rec[2], 64)
		if err != nil || closePrice <= 0 {
			return fmt.Errorf("fixture line %d: bad close %q", line, rec[2])
		}
		m.Add(rec[0], dca.PricePoint{Date: d, Close: closePrice})
	}
}

// Calls returns how many lookups were served.
func (m *MemorySource) Calls() int64 {
	return m.calls.Load()
}

// Tickers lists the loaded symbols.
func (m *MemorySource) Tickers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.series))
	for t := range m.series {
		out = append(out, t)
	}
	return out
}

// DailyCloses implements dca.PriceSource.
func (m *MemorySource) DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]dca.PricePoint, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	series, ok := m.series[strings.ToUpper(ticker)]
	if !ok {
		return nil, sourceError(MemorySourceName, ticker, 0, ErrTickerNotFound, "")
	}

	from, to = dca.Date(from), dca.Date(to)
	var out []dca.PricePoint
	for _, p := range series {
		if p.Date.Before(from) {
			continue
		}
		if p.Date.After(to) {
			break
		}
		out = append(out, p)
	}
	return out, nil
}
