package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	"github.com/0rShemesh/InvestGraph/internal/infrastructure"
	"github.com/0rShemesh/InvestGraph/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, ContentTypeProblem, rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind dca.Kind
		want int
	}{
		{dca.KindInvalidInput, http.StatusBadRequest},
		{dca.KindTickerNotFound, http.StatusNotFound},
		{dca.KindPriceDataUnavailable, http.StatusUnprocessableEntity},
		{dca.KindUpstreamTimeout, http.StatusGatewayTimeout},
		{dca.KindCanceled, StatusClientClosedRequest},
		{dca.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	invalid := dca.NewInvalidInput([]dca.FieldError{
		{Field: "ticker", Message: "ticker is required"},
		{Field: "monthlyInvestment", Message: "monthlyInvestment must be positive"},
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantError  string
		wantKind   string
	}{
		{
			name:       "invalid input lists every field",
			err:        invalid,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantError:  "ticker is required; monthlyInvestment must be positive",
			wantKind:   "invalid_input",
		},
		{
			name:       "ticker not found",
			err:        &dca.Error{Kind: dca.KindTickerNotFound, Message: `no price history for "ZZZZ"`},
			wantStatus: http.StatusNotFound,
			wantType:   TypeTickerNotFound,
			wantError:  `no price history for "ZZZZ"`,
			wantKind:   "ticker_not_found",
		},
		{
			name:       "wrapped price gap",
			err:        fmt.Errorf("simulate: %w", &dca.Error{Kind: dca.KindPriceDataUnavailable, Message: "no close within 5 trading days of 2020-03-02"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypePriceDataUnavailable,
			wantError:  "no close within 5 trading days of 2020-03-02",
			wantKind:   "price_data_unavailable",
		},
		{
			name:       "upstream timeout",
			err:        &dca.Error{Kind: dca.KindUpstreamTimeout, Message: "price source timed out"},
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeUpstreamTimeout,
			wantError:  "price source timed out",
			wantKind:   "upstream_timeout",
		},
		{
			name:       "bare deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeUpstreamTimeout,
			wantError:  "the calculation exceeded its time budget",
			wantKind:   "upstream_timeout",
		},
		{
			name:       "canceled",
			err:        context.Canceled,
			wantStatus: StatusClientClosedRequest,
			wantType:   TypeCanceled,
			wantError:  "the request was canceled",
			wantKind:   "canceled",
		},
		{
			name:       "internal error hides its message",
			err:        &dca.Error{Kind: dca.KindInternal, Message: "sqlite: disk I/O error at /var/data"},
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantError:  internalDetail,
			wantKind:   "internal_error",
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantError:  internalDetail,
			wantKind:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/calculate", nil)
			req = req.WithContext(infrastructure.WithTraceID(req.Context(), "trace-1"))
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.Equal(t, "trace-1", body["trace_id"])
			assert.Equal(t, "/api/calculate", body["instance"])
			assert.NotContains(t, body, "stack")
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_InvalidInputFields(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodPost, "/", nil),
		dca.NewInvalidInput([]dca.FieldError{{Field: "startDay", Message: "startDay must be between 1 and 31"}}))

	body := decodeProblem(t, rec)
	fields, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "startDay", fields[0].(map[string]any)["field"])
}

func TestErrorHandler_APIError(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), ErrRateLimitExceeded)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeRateLimit, body["type"])
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error_code"])
	assert.Equal(t, "Rate limit exceeded", body["error"])
}

func TestErrorHandler_NilErrorWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(nil, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestErrorHandler_StackOnlyForServerErrors(t *testing.T) {
	h := NewErrorHandler(nil, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), dca.ErrInternal)
	assert.Contains(t, decodeProblem(t, rec), "stack")

	rec = httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), dca.ErrTickerNotFound)
	assert.NotContains(t, decodeProblem(t, rec), "stack")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/calculate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["error"], "DELETE")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, internalDetail, body["error"])
	assert.NotContains(t, body, "panic")
	assert.True(t, logs.ContainsMessage("panic recovered"))
}
