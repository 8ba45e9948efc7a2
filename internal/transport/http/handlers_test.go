package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	apierrors "github.com/0rShemesh/InvestGraph/internal/errors"
	"github.com/0rShemesh/InvestGraph/internal/marketdata"
	"github.com/0rShemesh/InvestGraph/internal/middleware"
	"github.com/0rShemesh/InvestGraph/internal/services"
	"github.com/0rShemesh/InvestGraph/internal/shared/testutil"
	ws "github.com/0rShemesh/InvestGraph/internal/websocket"
)

var asOf = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	router *chi.Mux
	source *marketdata.MemorySource
	health *services.HealthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	src := testutil.NewSeededSource()
	src.Add("GAPPY", dca.PricePoint{Date: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), Close: 10})

	sim := dca.NewSimulator(src, dca.Options{
		CalcTimeout: 5 * time.Second,
		Resolver:    dca.DefaultResolverConfig(),
		Now:         testutil.FixedClock(asOf),
	}, logger)
	svc := services.NewSimulationService(sim, nil, logger)
	eh := apierrors.NewErrorHandler(logger, false)
	validator := middleware.NewValidator(middleware.DefaultMaxBodySize)
	health := services.NewHealthService("1.0.0-test", "", logger)
	hh := NewHealthHandler(health, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.NotFound(eh.NotFound)
	r.Get("/healthz", hh.HealthCheck)
	r.Get("/readyz", hh.ReadinessCheck)
	r.Get("/api/version", hh.Version)
	r.Mount("/api/calculate", NewCalculationHandler(svc, validator, eh, logger).Routes())
	r.Method(http.MethodGet, "/api/ws/calculate", NewStreamHandler(svc, validator, ws.Config{AllowedOrigins: []string{"http://allowed.example"}}, nil, eh, logger))
	r.Method(http.MethodGet, "/metrics", NewMetricsHandler(nil, eh))

	return &testEnv{router: r, source: src, health: health}
}

func (e *testEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"], "every problem carries an error member")
	assert.NotEmpty(t, body["trace_id"])
	return body
}

const aaplBody = `{"ticker":"aapl","monthlyInvestment":100,"startDay":1,"numMonths":3}`

func TestCalculate(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/api/calculate", aaplBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 3)

	wantDates := []string{"2024-04-01", "2024-05-01", "2024-06-03"}
	for i, r := range records {
		assert.Equal(t, wantDates[i], r["date"])
		assert.InDelta(t, 100*float64(i+1), r["total_invested"], 1e-9)
		for _, key := range []string{"price", "shares_bought", "total_shares", "current_value", "profit", "profit_percentage"} {
			assert.Contains(t, r, key)
		}
	}
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantType   string
		wantKind   string
		wantFields []string
	}{
		{
			name:       "missing fields",
			body:       `{"ticker":"AAPL"}`,
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
			wantKind:   "invalid_input",
			wantFields: []string{"monthlyInvestment", "startDay", "numMonths"},
		},
		{
			name:       "domain validation",
			body:       `{"ticker":" ","monthlyInvestment":0,"startDay":1,"numMonths":3}`,
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
			wantKind:   "invalid_input",
			wantFields: []string{"ticker", "monthlyInvestment"},
		},
		{
			name:       "unknown member",
			body:       `{"ticker":"AAPL","monthlyInvestment":100,"startDay":1,"numMonths":3,"currency":"EUR"}`,
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
			wantKind:   "invalid_input",
			wantFields: []string{"currency"},
		},
		{
			name:       "malformed json",
			body:       `{"ticker":`,
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
			wantKind:   "invalid_input",
			wantFields: []string{"body"},
		},
		{
			name:       "unknown ticker",
			body:       `{"ticker":"ZZZZ","monthlyInvestment":100,"startDay":1,"numMonths":3}`,
			wantStatus: http.StatusNotFound,
			wantType:   apierrors.TypeTickerNotFound,
			wantKind:   "ticker_not_found",
		},
		{
			name:       "price gap",
			body:       `{"ticker":"GAPPY","monthlyInvestment":100,"startDay":1,"numMonths":3}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   apierrors.TypePriceDataUnavailable,
			wantKind:   "price_data_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			calls := env.source.Calls()
			rec := env.post(t, "/api/calculate", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := problemOf(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, tt.wantKind, body["kind"])

			if tt.wantFields != nil {
				assert.Equal(t, calls, env.source.Calls(), "invalid input must not reach the price source")
				fields, ok := body["errors"].([]any)
				require.True(t, ok)
				var names []string
				for _, f := range fields {
					names = append(names, f.(map[string]any)["field"].(string))
				}
				assert.Equal(t, tt.wantFields, names)
			}
		})
	}
}

func TestCalculateRejectsNonJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader("ticker=AAPL"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestExports(t *testing.T) {
	env := newTestEnv(t)

	t.Run("csv", func(t *testing.T) {
		rec := env.post(t, "/api/calculate/export.csv", aaplBody)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contentTypeCSV, rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="AAPL_dca.csv"`, rec.Header().Get("Content-Disposition"))

		rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "300.00", rows[3][4])
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := env.post(t, "/api/calculate/export.xlsx", aaplBody)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip container")
	})

	t.Run("chart", func(t *testing.T) {
		rec := env.post(t, "/api/calculate/chart.png", aaplBody)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contentTypePNG, rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("export failures are problems", func(t *testing.T) {
		rec := env.post(t, "/api/calculate/export.csv", `{"ticker":"ZZZZ","monthlyInvestment":100,"startDay":1,"numMonths":3}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		problemOf(t, rec)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	version := get("/api/version")
	require.Equal(t, http.StatusOK, version.Code)
	assert.Contains(t, version.Body.String(), `"version":"1.0.0-test"`)

	env.health.AddCheck("price_cache", services.CheckFunc(func(context.Context) error {
		return io.ErrUnexpectedEOF
	}))
	rec := get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not_ready"`)

	assert.Equal(t, http.StatusNotFound, get("/metrics").Code, "metrics disabled")
}
