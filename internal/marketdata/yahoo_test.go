package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// yahooTimestamp is 09:30 New York on the given day, as Yahoo reports daily bars.
func yahooTimestamp(d time.Time) int64 {
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, dca.MarketLocation()).Unix()
}

func TestYahooDailyCloses(t *testing.T) {
	days := []time.Time{civil(2024, time.March, 1), civil(2024, time.March, 4), civil(2024, time.March, 5)}
	body := fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%d,%d,%d],
		"indicators":{"quote":[{"close":[180.1,null,170.5]}],"adjclose":[{"adjclose":[179.9,null,170.2]}]}}],"error":null}}`,
		yahooTimestamp(days[0]), yahooTimestamp(days[1]), yahooTimestamp(days[2]))

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := NewYahooClient(YahooConfig{Hosts: []string{srv.URL}}, srv.Client(), nil)
	pts, err := c.DailyCloses(context.Background(), "AAPL", days[0], days[2])
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Contains(t, gotQuery, "interval=1d")
	require.Len(t, pts, 2)
	assert.Equal(t, dca.PricePoint{Date: days[0], Close: 179.9}, pts[0])
	assert.Equal(t, dca.PricePoint{Date: days[2], Close: 170.2}, pts[1])
}

func TestYahooNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	c := NewYahooClient(YahooConfig{Hosts: []string{srv.URL}}, srv.Client(), nil)
	_, err := c.DailyCloses(context.Background(), "NOPE", civil(2024, time.March, 1), civil(2024, time.March, 8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTickerNotFound))

	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.NotFound())
	assert.False(t, se.Temporary())
}

func TestYahooRotatesHostsOnTransientFailure(t *testing.T) {
	var first atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "Edge: Too Many Requests")
	}))
	defer bad.Close()

	d := civil(2024, time.March, 1)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%d],"indicators":{"quote":[{"close":[10.5]}]}}],"error":null}}`, yahooTimestamp(d))
	}))
	defer good.Close()

	c := NewYahooClient(YahooConfig{Hosts: []string{bad.URL, good.URL}}, http.DefaultClient, nil)
	pts, err := c.DailyCloses(context.Background(), "AAPL", d, d)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 10.5, pts[0].Close)
	assert.Equal(t, int32(1), first.Load())
}

func TestYahooAllHostsFailingIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>consent</html>")
	}))
	defer srv.Close()

	c := NewYahooClient(YahooConfig{Hosts: []string{srv.URL, srv.URL}}, srv.Client(), nil)
	_, err := c.DailyCloses(context.Background(), "AAPL", civil(2024, time.March, 1), civil(2024, time.March, 1))
	require.Error(t, err)

	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
	assert.True(t, strings.Contains(err.Error(), "non-json"))
}

func TestYahooBadRequestIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`)
	}))
	defer srv.Close()

	c := NewYahooClient(YahooConfig{Hosts: []string{srv.URL, srv.URL}}, srv.Client(), nil)
	_, err := c.DailyCloses(context.Background(), "AAPL", civil(2024, time.March, 1), civil(2024, time.March, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadResponse))
	assert.Equal(t, int32(1), calls.Load(), "permanent failures are not retried on the next host")
}
