package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEODHDDailyCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/eod/AAPL.US", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_token"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-03-05", r.URL.Query().Get("to"))
		fmt.Fprint(w, `[
			{"date":"2024-03-05","open":170,"close":170.12,"adjusted_close":169.9},
			{"date":"2024-03-01","open":179,"close":179.66,"adjusted_close":null},
			{"date":"2024-03-04","open":175,"close":0}
		]`)
	}))
	defer srv.Close()

	c := NewEODHDClient(EODHDConfig{BaseURL: srv.URL, APIKey: "secret"}, srv.Client(), nil)
	pts, err := c.DailyCloses(context.Background(), "AAPL", civil(2024, time.March, 1), civil(2024, time.March, 5))
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, civil(2024, time.March, 1), pts[0].Date)
	assert.Equal(t, 179.66, pts[0].Close)
	assert.Equal(t, 169.9, pts[1].Close)
}

func TestEODHDKeepsExchangeSuffix(t *testing.T) {
	c := NewEODHDClient(EODHDConfig{Exchange: "XETRA"}, nil, nil)
	assert.Equal(t, "SAP.XETRA", c.symbol("SAP"))
	assert.Equal(t, "VOD.LSE", c.symbol("VOD.LSE"))
}

func TestEODHDErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		temporary bool
	}{
		{"not found", http.StatusNotFound, ErrTickerNotFound, false},
		{"rate limited", http.StatusTooManyRequests, ErrUpstream, true},
		{"server error", http.StatusBadGateway, ErrUpstream, true},
		{"unauthorized", http.StatusUnauthorized, ErrBadResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, "nope")
			}))
			defer srv.Close()

			c := NewEODHDClient(EODHDConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client(), nil)
			_, err := c.DailyCloses(context.Background(), "AAPL", civil(2024, time.March, 1), civil(2024, time.March, 5))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			var se *SourceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.temporary, se.Temporary())
			assert.Equal(t, tt.status, se.StatusCode)
		})
	}
}
