package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0rShemesh/InvestGraph/internal/config"
	"github.com/0rShemesh/InvestGraph/internal/infrastructure"
	"github.com/0rShemesh/InvestGraph/internal/shared/testutil"
)

var asOf = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

const aaplBody = `{"ticker":"AAPL","monthlyInvestment":100,"startDay":1,"numMonths":3}`

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testOTel() *infrastructure.OTelConfig {
	return &infrastructure.OTelConfig{
		ServiceName:   "investgraph-test",
		EnableMetrics: true,
		Registry:      promclient.NewRegistry(),
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *Application {
	t.Helper()
	opts = append([]Option{
		WithSource(testutil.NewSeededSource()),
		WithClock(testutil.FixedClock(asOf)),
		WithOTelConfig(testOTel()),
	}, opts...)
	a, err := NewApplication(cfg, quietLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.closeSources() })
	return a
}

func do(a *Application, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	a := newTestApp(t, testConfig())

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Simulator)
	assert.NotNil(t, a.SimulationService)
	assert.NotNil(t, a.HealthService)
	assert.Nil(t, a.Cache, "fixture sources are never cached")
	assert.Equal(t, ":8080", a.Server.Addr)
	assert.Equal(t, a.Config.Server.WriteTimeout, a.Server.WriteTimeout)
}

func TestRouterCalculate(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := do(a, http.MethodPost, "/api/calculate", aaplBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 3)
	for i, r := range records {
		assert.InDelta(t, 100*float64(i+1), r["total_invested"], 1e-9)
	}

	metrics := do(a, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "dca_calculation_duration_seconds")
	assert.Contains(t, metrics.Body.String(), `source="memory"`)
}

func TestRouterErrors(t *testing.T) {
	a := newTestApp(t, testConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/calculate", "", http.StatusMethodNotAllowed},
		{"invalid input", http.MethodPost, "/api/calculate", `{"ticker":"","monthlyInvestment":-1,"startDay":1,"numMonths":3}`, http.StatusBadRequest},
		{"unknown ticker", http.MethodPost, "/api/calculate", `{"ticker":"NOPE","monthlyInvestment":1,"startDay":1,"numMonths":3}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(a, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

			var problem map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.NotEmpty(t, problem["error"])
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	a := newTestApp(t, testConfig())

	for _, path := range []string{"/healthz", "/readyz", "/livez", "/api/version"} {
		rec := do(a, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	var ready map[string]any
	require.NoError(t, json.Unmarshal(do(a, http.MethodGet, "/readyz", "", nil).Body.Bytes(), &ready))
	assert.Contains(t, ready["services"], "market_data")
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AllowedOrigins = []string{"http://localhost:3000"}
	a := newTestApp(t, cfg)

	rec := do(a, http.MethodOptions, "/api/calculate", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(a, http.MethodPost, "/api/calculate", aaplBody, map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	a := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, do(a, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(a, http.MethodGet, "/healthz", "", nil).Code)
}

func TestStreamBypassesTimeout(t *testing.T) {
	cfg := testConfig()
	a := newTestApp(t, cfg)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/calculate", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(aaplBody)))
	var last map[string]any
	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		last = frame
	}
	require.NotNil(t, last)
	assert.Equal(t, "result", last["type"])
	assert.Len(t, last["records"], 3)
}

func TestMemoryProviderFromFixtureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("ticker,date,close\nXYZ,2024-04-01,10\nXYZ,2024-05-01,20\nXYZ,2024-06-03,40\n"), 0o600))

	cfg := testConfig()
	cfg.MarketData.Provider = config.ProviderMemory
	cfg.MarketData.FixturePath = path

	a, err := NewApplication(cfg, quietLogger(), WithClock(testutil.FixedClock(asOf)), WithOTelConfig(testOTel()))
	require.NoError(t, err)

	rec := do(a, http.MethodPost, "/api/calculate", `{"ticker":"xyz","monthlyInvestment":100,"startDay":1,"numMonths":3}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 3)
	// 10 + 5 + 2.5 shares at 40
	assert.InDelta(t, 700.0, records[2]["current_value"], 1e-9)
}

func TestMissingFixtureFile(t *testing.T) {
	cfg := testConfig()
	cfg.MarketData.Provider = config.ProviderMemory
	cfg.MarketData.FixturePath = filepath.Join(t.TempDir(), "missing.csv")

	_, err := NewApplication(cfg, quietLogger(), WithOTelConfig(testOTel()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open fixture file")
}

func TestCachedYahooSource(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache", "prices.db")

	a, err := NewApplication(cfg, quietLogger(), WithOTelConfig(testOTel()))
	require.NoError(t, err)
	t.Cleanup(func() { a.closeSources() })

	require.NotNil(t, a.Cache)
	assert.FileExists(t, cfg.Cache.Path)

	rec := do(a, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "price_cache")
}

func TestServeAndStop(t *testing.T) {
	a := newTestApp(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Serve(ctx, ln, cancel))

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
	assert.NoError(t, ctx.Err(), "a clean shutdown does not cancel the application")

	_, err = http.Get("http://" + ln.Addr().String() + "/healthz")
	assert.Error(t, err)
}
