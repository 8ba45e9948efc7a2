package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// YahooSourceName labels Yahoo calls in logs and metrics.
const YahooSourceName = "yahoo"

// DefaultYahooHosts are tried in order on every call.
var DefaultYahooHosts = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

const yahooUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				Adjclose []struct {
					Adjclose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooConfig configures the Yahoo chart client.
type YahooConfig struct {
	Hosts []string
	RPS   float64
	Burst int
}

// YahooClient reads daily closes from the Yahoo v8 chart API.
type YahooClient struct {
	http     *http.Client
	hosts    []string
	limiter  *rate.Limiter
	location *time.Location
	logger   *slog.Logger
}

// NewYahooClient creates a client. A nil httpClient uses a client with a 15s timeout.
func NewYahooClient(cfg YahooConfig, httpClient *http.Client, logger *slog.Logger) *YahooClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		hosts = DefaultYahooHosts
	}
	return &YahooClient{
		http:     httpClient,
		hosts:    hosts,
		limiter:  newLimiter(cfg.RPS, cfg.Burst),
		location: dca.MarketLocation(),
		logger:   logger.With(slog.String("component", "yahoo_client")),
	}
}

// DailyCloses implements dca.PriceSource. Split and dividend adjusted closes
// are preferred when Yahoo provides them.
func (c *YahooClient) DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]dca.PricePoint, error) {
	from, to = dca.Date(from), dca.Date(to)
	period1 := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, c.location).Unix()
	period2 := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, c.location).AddDate(0, 0, 1).Unix()

	var lastErr error
	for _, host := range c.hosts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		addr := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div,splits",
			strings.TrimRight(host, "/"), url.PathEscape(ticker), period1, period2)
		resp, err := c.fetch(ctx, addr, ticker)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var se *SourceError
			if errors.As(err, &se) && !se.Temporary() {
				return nil, err
			}
			c.logger.DebugContext(ctx, "yahoo host failed", slog.String("host", host), slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		return c.points(resp, from, to), nil
	}
	return nil, lastErr
}

func (c *YahooClient) fetch(ctx context.Context, addr, ticker string) (*yahooChartResp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", ticker))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, sourceError(YahooSourceName, ticker, 0, ErrUpstream, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrUpstream, "read body: "+err.Error())
	}

	trimmed := bytes.TrimSpace(body)
	if resp.StatusCode == http.StatusTooManyRequests || bytes.HasPrefix(trimmed, []byte("Edge:")) {
		return nil, sourceError(YahooSourceName, ticker, http.StatusTooManyRequests, ErrUpstream, "too many requests")
	}
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrUpstream, "non-json body: "+preview(trimmed))
	}

	var yc yahooChartResp
	if err := json.Unmarshal(trimmed, &yc); err != nil {
		if resp.StatusCode >= 500 {
			return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrUpstream, preview(trimmed))
		}
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrBadResponse, "parse json: "+err.Error())
	}

	if yc.Chart.Error != nil {
		if strings.EqualFold(yc.Chart.Error.Code, "Not Found") {
			return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrTickerNotFound, yc.Chart.Error.Description)
		}
		if resp.StatusCode >= 500 {
			return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrUpstream, yc.Chart.Error.Description)
		}
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrBadResponse, yc.Chart.Error.Description)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrTickerNotFound, "")
	case resp.StatusCode >= 500:
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrUpstream, preview(trimmed))
	case resp.StatusCode != http.StatusOK:
		return nil, sourceError(YahooSourceName, ticker, resp.StatusCode, ErrBadResponse, preview(trimmed))
	}
	return &yc, nil
}

func (c *YahooClient) points(yc *yahooChartResp, from, to time.Time) []dca.PricePoint {
	if len(yc.Chart.Result) == 0 {
		return nil
	}
	res := yc.Chart.Result[0]

	var closes []*float64
	if len(res.Indicators.Adjclose) > 0 && len(res.Indicators.Adjclose[0].Adjclose) == len(res.Timestamp) {
		closes = res.Indicators.Adjclose[0].Adjclose
	} else if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}

	out := make([]dca.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		d := dca.Date(time.Unix(ts, 0).In(c.location))
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, dca.PricePoint{Date: d, Close: *closes[i]})
	}
	return normalize(out)
}
