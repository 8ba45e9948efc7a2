package errors

import (
	"net/http"
)

// APIError is a transport-level failure that never reached the simulation
// pipeline: malformed JSON, wrong content type, rate limiting and the like.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of e carrying details. Predefined errors are
// shared, so they are never mutated.
func (e *APIError) WithDetails(details interface{}) *APIError {
	c := *e
	c.Details = details
	return &c
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	ErrNotFound             = New(http.StatusNotFound, "NOT_FOUND", "The requested resource was not found")
	ErrPayloadTooLarge      = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body exceeds maximum allowed size")
	ErrUnsupportedMediaType = New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported content type")
	ErrRateLimitExceeded    = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
)

// WebSocketUpgradeFailed reports a rejected handshake with the status the
// websocket library chose (400 for a plain request, 403 for a foreign origin).
func WebSocketUpgradeFailed(status int, reason error) *APIError {
	msg := "WebSocket upgrade failed"
	if reason != nil {
		msg += ": " + reason.Error()
	}
	return New(status, "WEBSOCKET_UPGRADE_FAILED", msg)
}
