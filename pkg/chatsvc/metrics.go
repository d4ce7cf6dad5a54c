package chatsvc

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the server's OpenTelemetry instruments: active sessions,
// sessions started, sessions ended, and bytes relayed. A nil *Metrics is safe to use everywhere below: every method
// guards against it, so callers that never configure a MeterProvider
// pay no instrumentation cost.
type Metrics struct {
	activeSessions  metric.Int64UpDownCounter
	sessionsStarted metric.Int64Counter
	sessionsEnded   metric.Int64Counter
	bytesRelayed    metric.Int64Counter
}

// NewMetrics builds the server's instruments against meter. Pass
// otel.GetMeterProvider().Meter("cmdchat") for the default global
// provider, or a test/no-op Meter in tests.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	activeSessions, err := meter.Int64UpDownCounter("cmdchat.sessions.active",
		metric.WithDescription("number of currently connected sessions"))
	if err != nil {
		return nil, err
	}
	sessionsStarted, err := meter.Int64Counter("cmdchat.sessions.started",
		metric.WithDescription("total sessions that completed a handshake"))
	if err != nil {
		return nil, err
	}
	sessionsEnded, err := meter.Int64Counter("cmdchat.sessions.ended",
		metric.WithDescription("total sessions that ended, clean or terminated"))
	if err != nil {
		return nil, err
	}
	bytesRelayed, err := meter.Int64Counter("cmdchat.bytes.relayed",
		metric.WithDescription("total ciphertext bytes written to sessions"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		activeSessions:  activeSessions,
		sessionsStarted: sessionsStarted,
		sessionsEnded:   sessionsEnded,
		bytesRelayed:    bytesRelayed,
	}, nil
}

func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
	m.sessionsStarted.Add(ctx, 1)
}

func (m *Metrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
	m.sessionsEnded.Add(ctx, 1)
}

func (m *Metrics) BytesRelayed(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.bytesRelayed.Add(ctx, n)
}
