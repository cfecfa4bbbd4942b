package websocket

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "loanrecovery.websocket"

// Metrics holds the OpenTelemetry instruments of the hub. A nil *Metrics
// records nothing.
type Metrics struct {
	connectionsTotal  metric.Int64Counter
	connectionsActive metric.Int64UpDownCounter
	messagesSent      metric.Int64Counter
	messagesDropped   metric.Int64Counter
}

// NewMetrics creates the hub instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	messagesSent, err := meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Frames queued to WebSocket clients"),
	)
	if err != nil {
		return nil, err
	}

	messagesDropped, err := meter.Int64Counter(
		"websocket_messages_dropped_total",
		metric.WithDescription("Events dropped because the broadcast buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		connectionsTotal:  connectionsTotal,
		connectionsActive: connectionsActive,
		messagesSent:      messagesSent,
		messagesDropped:   messagesDropped,
	}, nil
}

func (m *Metrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *Metrics) disconnected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
}

func (m *Metrics) sent(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.messagesSent.Add(ctx, n)
}

func (m *Metrics) dropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesDropped.Add(ctx, 1)
}
