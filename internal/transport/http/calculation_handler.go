package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	apierrors "github.com/0rShemesh/InvestGraph/internal/errors"
	"github.com/0rShemesh/InvestGraph/internal/exporter"
	"github.com/0rShemesh/InvestGraph/internal/middleware"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePNG  = "image/png"
)

// CalculateRequest is the wire body of every calculation endpoint. Pointer
// fields tell a missing member apart from a zero value; range checks are
// left to dca.Validate.
type CalculateRequest struct {
	Ticker            *string  `json:"ticker" validate:"required"`
	MonthlyInvestment *float64 `json:"monthlyInvestment" validate:"required"`
	StartDay          *int     `json:"startDay" validate:"required"`
	NumMonths         *int     `json:"numMonths" validate:"required"`
}

// Raw converts a validated wire body. Call it only after validation.
func (c CalculateRequest) Raw() dca.RawRequest {
	return dca.RawRequest{
		Ticker:            *c.Ticker,
		MonthlyInvestment: *c.MonthlyInvestment,
		StartDay:          *c.StartDay,
		NumMonths:         *c.NumMonths,
	}
}

// CalculationHandler serves the calculation and export endpoints
type CalculationHandler struct {
	service      SimulationServiceInterface
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewCalculationHandler creates a new calculation handler
func NewCalculationHandler(service SimulationServiceInterface, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *CalculationHandler {
	if validator == nil {
		validator = middleware.NewValidator(middleware.DefaultMaxBodySize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalculationHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "calculation_handler")),
	}
}

// Routes returns the calculation routes, mounted under /api/calculate
func (h *CalculationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))

	r.Post("/", h.Calculate)
	r.Post("/export.csv", h.ExportCSV)
	r.Post("/export.xlsx", h.ExportXLSX)
	r.Post("/chart.png", h.Chart)
	return r
}

// Calculate handles POST /api/calculate
func (h *CalculationHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	_, result, ok := h.run(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, result)
}

// ExportCSV handles POST /api/calculate/export.csv
func (h *CalculationHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	raw, result, ok := h.run(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exporter.WriteCSV(&buf, result, exporter.CSVOptions{BOMPrefix: true}); err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("csv export: %w", err))
		return
	}
	h.attachment(w, contentTypeCSV, filename(raw.Ticker, "csv"), buf.Bytes())
}

// ExportXLSX handles POST /api/calculate/export.xlsx
func (h *CalculationHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	raw, result, ok := h.run(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exporter.WriteXLSX(&buf, strings.ToUpper(strings.TrimSpace(raw.Ticker)), result); err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("xlsx export: %w", err))
		return
	}
	h.attachment(w, contentTypeXLSX, filename(raw.Ticker, "xlsx"), buf.Bytes())
}

// Chart handles POST /api/calculate/chart.png
func (h *CalculationHandler) Chart(w http.ResponseWriter, r *http.Request) {
	raw, result, ok := h.run(w, r)
	if !ok {
		return
	}

	png, err := exporter.RenderChartPNG(raw.Ticker, result)
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("chart: %w", err))
		return
	}
	w.Header().Set("Content-Type", contentTypePNG)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// run decodes the body and runs the calculation. On failure the problem
// response is already written.
func (h *CalculationHandler) run(w http.ResponseWriter, r *http.Request) (dca.RawRequest, dca.SimulationResult, bool) {
	var req CalculateRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return dca.RawRequest{}, nil, false
	}

	raw := req.Raw()
	result, err := h.service.Calculate(r.Context(), raw)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return raw, nil, false
	}
	return raw, result, true
}

func (h *CalculationHandler) attachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func filename(ticker, ext string) string {
	return fmt.Sprintf("%s_dca.%s", strings.ToUpper(strings.TrimSpace(ticker)), ext)
}
