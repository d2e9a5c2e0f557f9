package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
)

func TestNewAuthMetrics(t *testing.T) {
	ctx := context.Background()
	mp := metric.NewMeterProvider()
	defer mp.Shutdown(ctx)

	m, err := NewAuthMetrics(mp)
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}
	m.RecordLogin(ctx, "success")
	m.RecordLockout(ctx)
	m.RecordRotation(ctx)
	m.RecordRefreshRejection(ctx)
	m.RecordRevocation(ctx, 3)
}

func TestAuthMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()
	var m *AuthMetrics

	m.RecordLogin(ctx, "success")
	m.RecordLockout(ctx)
	m.RecordRotation(ctx)
	m.RecordRefreshRejection(ctx)
	m.RecordRevocation(ctx, 1)
}
