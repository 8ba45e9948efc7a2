package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	apierrors "github.com/0rShemesh/InvestGraph/internal/errors"
	"github.com/0rShemesh/InvestGraph/internal/middleware"
	ws "github.com/0rShemesh/InvestGraph/internal/websocket"
)

// StreamHandler serves GET /api/ws/calculate: the same calculation as
// POST /api/calculate with progress frames while prices resolve.
type StreamHandler struct {
	service   SimulationServiceInterface
	validator *middleware.Validator
	upgrader  *gorillaws.Upgrader
	cfg       ws.Config
	metrics   *ws.Metrics
	logger    *slog.Logger
}

// NewStreamHandler creates a new stream handler. metrics may be nil.
// Rejected handshakes are answered by errorHandler as problem documents.
func NewStreamHandler(service SimulationServiceInterface, validator *middleware.Validator, cfg ws.Config, metrics *ws.Metrics, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *StreamHandler {
	if validator == nil {
		validator = middleware.NewValidator(middleware.DefaultMaxBodySize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}

	upgrader := ws.NewUpgrader(cfg)
	upgrader.Error = func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		errorHandler.HandleError(w, r, apierrors.WebSocketUpgradeFailed(status, reason))
	}

	return &StreamHandler{
		service:   service,
		validator: validator,
		upgrader:  upgrader,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "stream_handler")),
	}
}

// ServeHTTP upgrades the connection and runs one calculation over it.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Error has already written the problem response
		h.logger.DebugContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	session := ws.NewSession(r.Context(), ws.NewConnectionWrapper(conn), h.cfg, h.metrics, h.logger)
	defer session.Close(gorillaws.CloseNormalClosure, "")

	data, err := session.ReadRequest()
	if err != nil {
		if errors.Is(err, ws.ErrUnexpectedMessage) {
			h.sendError(r, session, dca.NewInvalidInput([]dca.FieldError{{Field: "body", Message: "request must be a JSON text frame"}}))
			return
		}
		h.logger.DebugContext(r.Context(), "no request frame received", slog.String("error", err.Error()))
		return
	}

	var req CalculateRequest
	if err := h.validator.Unmarshal(data, &req); err != nil {
		h.sendError(r, session, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	session.Watch(cancel)

	result, err := h.service.CalculateWithProgress(ctx, req.Raw(), func(resolved, total int) {
		if err := session.Send(ws.NewProgressMessage(resolved, total)); err != nil {
			h.logger.DebugContext(ctx, "dropped progress frame", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		h.sendError(r, session, err)
		return
	}

	if err := session.Send(ws.NewResultMessage(result)); err != nil {
		h.logger.WarnContext(r.Context(), "failed to send result", slog.String("error", err.Error()))
	}
}

func (h *StreamHandler) sendError(r *http.Request, session *ws.Session, err error) {
	problem := apierrors.ProblemFor(err, r.URL.Path)
	msg := ws.ErrorMessage{
		Type:    ws.MessageTypeError,
		Status:  problem.Status,
		TraceID: apierrors.RequestTraceID(r.Context()),
	}
	msg.Error, _ = problem.Extensions["error"].(string)
	msg.Kind, _ = problem.Extensions["kind"].(string)

	var de *dca.Error
	if errors.As(err, &de) {
		msg.Fields = de.Fields
	}

	if err := session.Send(msg); err != nil {
		h.logger.DebugContext(r.Context(), "failed to send error frame", slog.String("error", err.Error()))
	}
}
