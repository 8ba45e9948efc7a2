package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/0rShemesh/InvestGraph/internal/config"
	"github.com/0rShemesh/InvestGraph/internal/infrastructure"
)

// ErrUnexpectedMessage is returned when the first client frame is not text.
var ErrUnexpectedMessage = errors.New("expected a text message")

// Config tunes upgrades and session timing.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	// PongWait bounds the wait for the request frame and between pongs.
	PongWait  time.Duration
	WriteWait time.Duration
	// MaxMessageSize limits client frames; the only one expected is the request.
	MaxMessageSize int64
	AllowedOrigins []string
}

// ConfigFrom maps the application config.
func ConfigFrom(cfg config.WebSocketConfig, allowedOrigins []string) Config {
	return Config{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		PongWait:        cfg.PongWait,
		WriteWait:       cfg.WriteWait,
		MaxMessageSize:  4096,
		AllowedOrigins:  allowedOrigins,
	}
}

func (c Config) withDefaults() Config {
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

// NewUpgrader returns an upgrader that accepts same-host requests, requests
// without an Origin header and the configured origins.
func NewUpgrader(cfg Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range cfg.AllowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// Session is one calculation stream: the client sends a single request
// frame, the server answers with progress frames and one final frame.
//
// Reads happen on one goroutine at a time; writes are serialized by writeMu.
type Session struct {
	conn        Connection
	id          string
	traceID     string
	cfg         Config
	metrics     *Metrics
	logger      *slog.Logger
	connectedAt time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	finish    func()
}

// NewSession wraps an upgraded connection.
func NewSession(ctx context.Context, conn Connection, cfg Config, metrics *Metrics, logger *slog.Logger) *Session {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	id := uuid.New().String()
	traceID := infrastructure.GetTraceID(ctx)

	s := &Session{
		conn:        conn,
		id:          id,
		traceID:     traceID,
		cfg:         cfg.withDefaults(),
		metrics:     metrics,
		connectedAt: time.Now(),
		done:        make(chan struct{}),
		logger: logger.With(
			slog.String("component", "websocket.session"),
			slog.String("session_id", id),
			slog.String("remote_addr", conn.RemoteAddr()),
		),
	}
	s.finish = metrics.SessionOpened(s.ctx())
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) ctx() context.Context {
	ctx := context.Background()
	if s.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, s.traceID)
	}
	return ctx
}

// ReadRequest reads the first client frame. It must be called before Watch.
func (s *Session) ReadRequest() ([]byte, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		s.metrics.RecordError(s.ctx(), "received")
		return nil, fmt.Errorf("failed to read request frame: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, ErrUnexpectedMessage
	}
	s.metrics.RecordMessage(s.ctx(), "received", "request", len(data))
	return data, nil
}

// Watch keeps the connection alive with pings and calls cancel once the
// client goes away. It returns immediately.
func (s *Session) Watch(cancel context.CancelFunc) {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.DebugContext(s.ctx(), "stream reader stopped", slog.String("error", err.Error()))
				}
				return
			}
			// further client frames carry no meaning
		}
	}()

	go func() {
		ticker := time.NewTicker(s.cfg.PongWait * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if err := s.write(websocket.PingMessage, nil); err != nil {
					s.logger.DebugContext(s.ctx(), "failed to send ping", slog.String("error", err.Error()))
					return
				}
			}
		}
	}()
}

// Send writes one frame as JSON.
func (s *Session) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.MessageType(), err)
	}
	if err := s.write(websocket.TextMessage, data); err != nil {
		s.metrics.RecordError(s.ctx(), "sent")
		return err
	}
	s.metrics.RecordMessage(s.ctx(), "sent", msg.MessageType(), len(data))
	return nil
}

func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return websocket.ErrCloseSent
	default:
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return s.conn.WriteMessage(messageType, data)
}

// Close sends a close frame with code and reason, then drops the connection.
// It is safe to call more than once.
func (s *Session) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
		// best effort; the peer may already be gone
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		close(s.done)
		s.writeMu.Unlock()

		err = s.conn.Close()
		s.finish()
		s.logger.InfoContext(s.ctx(), "stream closed",
			slog.Int("code", code),
			slog.Duration("connection_duration", time.Since(s.connectedAt)))
	})
	return err
}
