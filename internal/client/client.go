package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

const (
	calculatePath = "/api/calculate"
	maxBodySize   = 16 << 20
)

var (
	// ErrInvalidResponse is returned when a 2xx body is not a record array.
	ErrInvalidResponse = errors.New("invalid response format from server")

	// ErrUnsupportedFormat is returned by Export for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// exportPaths maps export formats to their endpoints.
var exportPaths = map[string]string{
	"csv":  calculatePath + "/export.csv",
	"xlsx": calculatePath + "/export.xlsx",
	"png":  calculatePath + "/chart.png",
}

// ResponseError is a non-2xx answer from the server.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return e.Message
}

// Client talks to a running calculation server.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer func(State)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithStateObserver registers fn to receive every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(c *Client) { c.observer = fn }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "client"))
	return c
}

// Calculate runs a calculation and returns its final state. Transport
// failures, non-2xx answers and bodies that are not arrays all yield Failed.
func (c *Client) Calculate(ctx context.Context, raw dca.RawRequest) State {
	c.emit(Loading{})

	body, err := c.post(ctx, calculatePath, raw)
	if err != nil {
		return c.emit(Failed{Err: err})
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return c.emit(Failed{Err: ErrInvalidResponse})
	}
	var records dca.SimulationResult
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return c.emit(Failed{Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)})
	}

	return c.emit(Succeeded{
		Ticker:  strings.ToUpper(strings.TrimSpace(raw.Ticker)),
		Records: records,
	})
}

// Export fetches a csv, xlsx or png rendition of a calculation.
func (c *Client) Export(ctx context.Context, raw dca.RawRequest, format string) ([]byte, error) {
	path, ok := exportPaths[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return c.post(ctx, path, raw)
}

func (c *Client) post(ctx context.Context, path string, raw dca.RawRequest) ([]byte, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "request failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.DebugContext(ctx, "response received",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

// responseError prefers the server's error member over a generic message.
func responseError(status int, body []byte) *ResponseError {
	var problem struct {
		Error string `json:"error"`
	}
	msg := "Failed to fetch data"
	if json.Unmarshal(body, &problem) == nil && problem.Error != "" {
		msg = problem.Error
	}
	return &ResponseError{Status: status, Message: msg}
}

func (c *Client) emit(s State) State {
	if c.observer != nil {
		c.observer(s)
	}
	return s
}
