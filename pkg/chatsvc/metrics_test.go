package chatsvc

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewMetricsAndNilSafety(t *testing.T) {
	meter := otel.Meter("cmdchat-test")
	m, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}

	ctx := context.Background()
	m.SessionStarted(ctx)
	m.SessionEnded(ctx)
	m.BytesRelayed(ctx, 128)

	var nilMetrics *Metrics
	nilMetrics.SessionStarted(ctx)
	nilMetrics.SessionEnded(ctx)
	nilMetrics.BytesRelayed(ctx, 1)
}
