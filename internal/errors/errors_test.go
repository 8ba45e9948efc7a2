package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "Rate limit exceeded", ErrRateLimitExceeded.Error())
	assert.Equal(t, "boom", New(http.StatusTeapot, "TEAPOT", "boom").Error())
}

func TestAPIError_WithDetails(t *testing.T) {
	err := ErrUnsupportedMediaType.WithDetails(map[string]string{"content_type": "text/plain"})
	assert.Equal(t, http.StatusUnsupportedMediaType, err.StatusCode)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", err.ErrorCode)
	assert.NotNil(t, err.Details)
	assert.Nil(t, ErrUnsupportedMediaType.Details)
}

func TestWebSocketUpgradeFailed(t *testing.T) {
	err := WebSocketUpgradeFailed(http.StatusForbidden, fmt.Errorf("origin not allowed"))
	assert.Equal(t, http.StatusForbidden, err.StatusCode)
	assert.Equal(t, "WEBSOCKET_UPGRADE_FAILED", err.ErrorCode)
	assert.Equal(t, "WebSocket upgrade failed: origin not allowed", err.Message)

	assert.Equal(t, "WebSocket upgrade failed", WebSocketUpgradeFailed(http.StatusBadRequest, nil).Message)
}

func TestWriteProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	problem := NewProblemDetails(http.StatusUnprocessableEntity, TypePriceDataUnavailable, "Price Data Unavailable", "gap", "/api/calculate").
		WithExtension("error", "gap")

	require.NoError(t, WriteProblem(rec, problem))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ContentTypeProblem, rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "gap", body["error"])
	assert.Equal(t, float64(http.StatusUnprocessableEntity), body["status"])
}

func TestProblemDetailsMarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusNotFound, TypeTickerNotFound, "Ticker Not Found", "no data for ZZZZ", "/api/calculate").
		WithExtension("error", "no data for ZZZZ").
		WithExtension("status", "shadowed")

	raw, err := json.Marshal(problem)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, TypeTickerNotFound, body["type"])
	assert.Equal(t, float64(http.StatusNotFound), body["status"], "standard members win over extensions")
	assert.Equal(t, "no data for ZZZZ", body["error"])
	assert.Equal(t, "/api/calculate", body["instance"])

	raw, err = json.Marshal(&ProblemDetails{Type: TypeInternal, Title: "x", Status: 500})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "detail")
	assert.NotContains(t, string(raw), "instance")
}
