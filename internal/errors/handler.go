package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	"github.com/0rShemesh/InvestGraph/internal/infrastructure"
)

// StatusClientClosedRequest is the non-standard status used when the client
// went away before the calculation finished.
const StatusClientClosedRequest = 499

// Problem types
const (
	TypeValidation           = "/errors/validation"
	TypeForbidden            = "/errors/forbidden"
	TypeNotFound             = "/errors/not-found"
	TypeTickerNotFound       = "/errors/ticker-not-found"
	TypePriceDataUnavailable = "/errors/price-data-unavailable"
	TypeUpstreamTimeout      = "/errors/upstream-timeout"
	TypeCanceled             = "/errors/canceled"
	TypeRateLimit            = "/errors/rate-limit"
	TypeInternal             = "/errors/internal"
	TypeServiceDown          = "/errors/service-unavailable"
	TypeMethodNotAllowed     = "/errors/method-not-allowed"
	TypePayloadTooLarge      = "/errors/payload-too-large"
	TypeUnsupportedMedia     = "/errors/unsupported-media-type"
)

const internalDetail = "An unexpected error occurred while processing your request"

// StatusFor maps a simulation error kind to its HTTP status.
func StatusFor(kind dca.Kind) int {
	switch kind {
	case dca.KindInvalidInput:
		return http.StatusBadRequest
	case dca.KindTickerNotFound:
		return http.StatusNotFound
	case dca.KindPriceDataUnavailable:
		return http.StatusUnprocessableEntity
	case dca.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case dca.KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	traceID := RequestTraceID(r.Context())
	problem.WithExtension("trace_id", traceID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.String("kind", dca.KindOf(err).String()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	if err := WriteProblem(w, problem); err != nil {
		h.logger.DebugContext(r.Context(), "failed to write problem response", slog.String("error", err.Error()))
	}
}

// ErrorToProblem converts an error to RFC 7807 Problem Details. Every problem
// carries an "error" member with a human readable message.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	instance := ""
	if r != nil {
		instance = r.URL.Path
	}
	return ProblemFor(err, instance)
}

// ProblemFor builds the problem document for err.
func ProblemFor(err error, instance string) *ProblemDetails {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErrorToProblem(apiErr, instance)
	}

	var de *dca.Error
	if !errors.As(err, &de) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			de = &dca.Error{Kind: dca.KindUpstreamTimeout, Message: "the calculation exceeded its time budget"}
		case errors.Is(err, context.Canceled):
			de = &dca.Error{Kind: dca.KindCanceled, Message: "the request was canceled"}
		default:
			de = &dca.Error{Kind: dca.KindInternal}
		}
	}

	status := StatusFor(de.Kind)
	var problem *ProblemDetails
	switch de.Kind {
	case dca.KindInvalidInput:
		problem = NewProblemDetails(status, TypeValidation, "Invalid Input", de.Message, instance)
		if len(de.Fields) > 0 {
			problem.WithExtension("errors", de.Fields)
		}
	case dca.KindTickerNotFound:
		problem = NewProblemDetails(status, TypeTickerNotFound, "Ticker Not Found", de.Message, instance)
	case dca.KindPriceDataUnavailable:
		problem = NewProblemDetails(status, TypePriceDataUnavailable, "Price Data Unavailable", de.Message, instance)
	case dca.KindUpstreamTimeout:
		problem = NewProblemDetails(status, TypeUpstreamTimeout, "Upstream Timeout", de.Message, instance)
	case dca.KindCanceled:
		problem = NewProblemDetails(status, TypeCanceled, "Client Closed Request", de.Message, instance)
	default:
		// internal messages may name files or queries; keep them in the logs
		problem = NewProblemDetails(status, TypeInternal, "Internal Server Error", internalDetail, instance)
	}

	msg := problem.Detail
	if msg == "" {
		msg = problem.Title
	}
	return problem.
		WithExtension("error", msg).
		WithExtension("kind", de.Kind.String())
}

func apiErrorToProblem(apiErr *APIError, instance string) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		problemType = TypeValidation
	case http.StatusForbidden:
		problemType = TypeForbidden
	case http.StatusNotFound:
		problemType = TypeNotFound
	case http.StatusMethodNotAllowed:
		problemType = TypeMethodNotAllowed
	case http.StatusRequestEntityTooLarge:
		problemType = TypePayloadTooLarge
	case http.StatusUnsupportedMediaType:
		problemType = TypeUnsupportedMedia
	case http.StatusTooManyRequests:
		problemType = TypeRateLimit
	case http.StatusServiceUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		instance,
	).
		WithExtension("error_code", apiErr.ErrorCode).
		WithExtension("error", apiErr.Message)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic turns a recovered panic into a 500 problem response
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	traceID := RequestTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", getStackTrace()),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		internalDetail,
		r.URL.Path,
	).
		WithExtension("error", internalDetail).
		WithExtension("kind", dca.KindInternal.String()).
		WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	if err := WriteProblem(w, problem); err != nil {
		h.logger.DebugContext(r.Context(), "failed to write problem response", slog.String("error", err.Error()))
	}
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, ErrNotFound)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)))
}

// RequestTraceID returns the trace ID set by the request ID middleware,
// falling back to chi's request ID.
func RequestTraceID(ctx context.Context) string {
	if id := infrastructure.GetTraceID(ctx); id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
