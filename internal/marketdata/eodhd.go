package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// EODHDSourceName labels EODHD calls in logs and metrics.
const EODHDSourceName = "eodhd"

// DefaultEODHDBaseURL is the public EODHD API root.
const DefaultEODHDBaseURL = "https://eodhd.com"

// EODHDConfig configures the EODHD end-of-day client.
type EODHDConfig struct {
	BaseURL  string
	APIKey   string
	Exchange string // suffix appended to bare tickers, e.g. "US"
	RPS      float64
	Burst    int
}

// EODHDClient reads daily closes from the eodhd.com EOD endpoint.
type EODHDClient struct {
	http    *http.Client
	cfg     EODHDConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

type eodhdBar struct {
	Date          string           `json:"date"`
	Close         decimal.Decimal  `json:"close"`
	AdjustedClose *decimal.Decimal `json:"adjusted_close"`
}

// NewEODHDClient creates a client. A nil httpClient uses a client with a 15s timeout.
func NewEODHDClient(cfg EODHDConfig, httpClient *http.Client, logger *slog.Logger) *EODHDClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEODHDBaseURL
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "US"
	}
	return &EODHDClient{
		http:    httpClient,
		cfg:     cfg,
		limiter: newLimiter(cfg.RPS, cfg.Burst),
		logger:  logger.With(slog.String("component", "eodhd_client")),
	}
}

// symbol maps a bare ticker to EODHD's TICKER.EXCHANGE form.
func (c *EODHDClient) symbol(ticker string) string {
	if strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + "." + c.cfg.Exchange
}

// DailyCloses implements dca.PriceSource.
func (c *EODHDClient) DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]dca.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	from, to = dca.Date(from), dca.Date(to)

	q := url.Values{}
	q.Set("fmt", "json")
	q.Set("api_token", c.cfg.APIKey)
	q.Set("from", from.Format(dca.DateLayout))
	q.Set("to", to.Format(dca.DateLayout))
	addr := fmt.Sprintf("%s/api/eod/%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.symbol(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, sourceError(EODHDSourceName, ticker, 0, ErrUpstream, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sourceError(EODHDSourceName, ticker, resp.StatusCode, ErrUpstream, "read body: "+err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, sourceError(EODHDSourceName, ticker, resp.StatusCode, ErrTickerNotFound, "")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, sourceError(EODHDSourceName, ticker, resp.StatusCode, ErrUpstream, preview(body))
	case resp.StatusCode != http.StatusOK:
		return nil, sourceError(EODHDSourceName, ticker, resp.StatusCode, ErrBadResponse, preview(body))
	}

	var bars []eodhdBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, sourceError(EODHDSourceName, ticker, resp.StatusCode, ErrBadResponse, "parse json: "+err.Error())
	}

	out := make([]dca.PricePoint, 0, len(bars))
	for _, b := range bars {
		d, err := time.Parse(dca.DateLayout, b.Date)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping bar with bad date", slog.String("ticker", ticker), slog.String("date", b.Date))
			continue
		}
		price := b.Close
		if b.AdjustedClose != nil && b.AdjustedClose.IsPositive() {
			price = *b.AdjustedClose
		}
		if !price.IsPositive() || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, dca.PricePoint{Date: d, Close: price.InexactFloat64()})
	}
	return normalize(out), nil
}
