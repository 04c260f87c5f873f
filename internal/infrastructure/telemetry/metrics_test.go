package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/revalya/tenantaccess/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestHelpers_NilMeter(t *testing.T) {
	_, err := telemetry.NewCounter(nil, "x", "", "")
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)

	_, err = telemetry.NewHistogram(nil, telemetry.HistogramOpts{Name: "x"})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)

	_, err = telemetry.NewAccessMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestAccessMetrics_NoopMeter(t *testing.T) {
	m, err := telemetry.NewAccessMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	m.RecordOperation(context.Background(), "query", "products.list", "success", 10*time.Millisecond)
	m.RecordRetry(context.Background(), "billing.create")
}

func TestAccessMetrics_Collected(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewAccessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOperation(ctx, "mutation", "billing.create", "success", time.Millisecond)
	m.RecordOperation(ctx, "mutation", "billing.create", "success", time.Millisecond)
	m.RecordRetry(ctx, "billing.create")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
				if md.Name == "tenantaccess_operations_total" {
					v, _ := dp.Attributes.Value(attribute.Key("outcome"))
					assert.Equal(t, "success", v.AsString())
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["tenantaccess_operations_total"])
	assert.Equal(t, int64(1), sums["tenantaccess_mutation_retries_total"])
}
