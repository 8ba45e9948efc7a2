package testutil

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
		AssertLogContains(t, handler, slog.LevelError, "error message")
	})

	t.Run("derived loggers share records and keep attrs", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With("component", "resolver").Debug("chunk fetched")

		records := handler.GetRecords()
		require.Len(t, records, 1)
		assert.Equal(t, "resolver", records[0].Attrs["component"])
		AssertLogAttr(t, handler, "component", "resolver")
	})

	t.Run("filters by level and clears", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		AssertNoErrors(t, handler)

		handler.Clear()
		assert.Zero(t, handler.Count())
	})
}

func TestSeedPrices(t *testing.T) {
	src := NewSeededSource()
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, src.Tickers())

	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, PriceOn(100, day), PriceOn(100, day.Add(15*time.Hour)), 0)
	assert.GreaterOrEqual(t, PriceOn(100, day), 100.0)
	assert.Less(t, PriceOn(100, day), 100+97*0.37)

	now := FixedClock(day)
	assert.Equal(t, day, now())
}
