package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the realtime counters. All methods are nil-safe so callers
// can pass a nil *Metrics when metrics are disabled.
type Metrics struct {
	published metric.Int64Counter
	dropped   metric.Int64Counter
	conflicts metric.Int64Counter
}

// NewMetrics creates the realtime counters from the given MeterProvider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("orderdesk.realtime")
	published, err := meter.Int64Counter("realtime.events.published",
		metric.WithDescription("Events published to rooms"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("realtime.deliveries.dropped",
		metric.WithDescription("Per-member deliveries dropped (dead or slow connection)"))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("realtime.conflicts.detected",
		metric.WithDescription("Field edit conflicts surfaced to users"))
	if err != nil {
		return nil, err
	}
	return &Metrics{published: published, dropped: dropped, conflicts: conflicts}, nil
}

// EventPublished counts one room publish.
func (m *Metrics) EventPublished(ctx context.Context, eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// DeliveryDropped counts one dropped per-member delivery.
func (m *Metrics) DeliveryDropped(ctx context.Context, eventType string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// ConflictDetected counts one advisory conflict warning.
func (m *Metrics) ConflictDetected(ctx context.Context, fieldName string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("field_name", fieldName)))
}
