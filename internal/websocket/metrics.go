package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records calculation stream activity. A nil *Metrics records nothing.
type Metrics struct {
	sessionsTotal   metric.Int64Counter
	sessionsActive  metric.Int64UpDownCounter
	sessionDuration metric.Float64Histogram
	messagesTotal   metric.Int64Counter
	messageBytes    metric.Int64Counter
	messageErrors   metric.Int64Counter
}

// NewMetrics registers the stream instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.sessionsTotal, err = meter.Int64Counter(
		"websocket_sessions_total",
		metric.WithDescription("Total number of calculation streams opened"),
	); err != nil {
		return nil, err
	}

	if m.sessionsActive, err = meter.Int64UpDownCounter(
		"websocket_sessions_active",
		metric.WithDescription("Number of open calculation streams"),
	); err != nil {
		return nil, err
	}

	if m.sessionDuration, err = meter.Float64Histogram(
		"websocket_session_duration_seconds",
		metric.WithDescription("Duration of calculation streams"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.messagesTotal, err = meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("Total number of frames sent and received"),
	); err != nil {
		return nil, err
	}

	if m.messageBytes, err = meter.Int64Counter(
		"websocket_message_bytes_total",
		metric.WithDescription("Total bytes of frames sent and received"),
	); err != nil {
		return nil, err
	}

	if m.messageErrors, err = meter.Int64Counter(
		"websocket_message_errors_total",
		metric.WithDescription("Total number of failed frame reads and writes"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// SessionOpened records a new stream and returns the func that closes it.
func (m *Metrics) SessionOpened(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.sessionsTotal.Add(ctx, 1)
	m.sessionsActive.Add(ctx, 1)
	return func() {
		m.sessionsActive.Add(ctx, -1)
		m.sessionDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// RecordMessage records one frame. direction is "sent" or "received".
func (m *Metrics) RecordMessage(ctx context.Context, direction string, messageType MessageType, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("message_type", string(messageType)),
	)
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordError records a failed read or write.
func (m *Metrics) RecordError(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.messageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}
