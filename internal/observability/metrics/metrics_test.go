package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("operation", "allocate"),
		attribute.String("student_id", "456"),
		attribute.String("reason", "invalid_amount"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "student_id" {
			t.Fatalf("expected student_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordPayment(context.Background(), "applied", 10)
	m.RecordScheduleGenerated(context.Background(), "enrollment", 3)
	m.RecordManualEdit(context.Background(), "saved")
	m.RecordReconciliation(context.Background(), "payment")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "feeledger"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordPayment(context.Background(), "applied", 150)
}
