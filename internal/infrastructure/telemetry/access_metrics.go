package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AccessMetrics counts guarded data operations.
type AccessMetrics struct {
	operations *Counter
	retries    *Counter
	duration   *Histogram
}

// NewAccessMetrics registers the access-layer instruments on the meter
func NewAccessMetrics(meter metric.Meter) (*AccessMetrics, error) {
	operations, err := NewCounter(meter,
		"tenantaccess_operations_total",
		"Guarded queries and mutations by outcome",
		"{operation}",
	)
	if err != nil {
		return nil, err
	}
	retries, err := NewCounter(meter,
		"tenantaccess_mutation_retries_total",
		"Mutation attempts retried after a sequence-number conflict",
		"{retry}",
	)
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "tenantaccess_operation_duration_seconds",
		Description: "Duration of guarded operations including context apply and clear",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &AccessMetrics{operations: operations, retries: retries, duration: duration}, nil
}

// RecordOperation records one finished query or mutation
func (m *AccessMetrics) RecordOperation(ctx context.Context, kind, operation, outcome string, d time.Duration) {
	attrs := []attribute.KeyValue{
		AttrKind.String(kind),
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
	}
	m.operations.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, d, attrs...)
}

// RecordRetry records one retried mutation attempt
func (m *AccessMetrics) RecordRetry(ctx context.Context, operation string) {
	m.retries.Inc(ctx, AttrOperation.String(operation))
}
