package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/JonMunkholm/jsonimport/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestWrapStoreDisabledReturnsInner(t *testing.T) {
	require.NoError(t, Init(context.Background(), Options{}))
	inner := memory.New()
	assert.Same(t, inner, WrapStore(inner))
}

func TestInstrumentedStoreRecordsSpansAndMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	s := newInstrumentedStore(memory.New(), mp.Meter("test"), tp.Tracer("test"))

	doc, err := s.Create(ctx, "posts", core.Document{"slug": "a"})
	require.NoError(t, err)
	_, err = s.FindEquals(ctx, "posts", "slug", "a")
	require.NoError(t, err)
	_, err = s.UpdateOne(ctx, "posts", "missing", core.Document{"slug": "b"})
	require.Error(t, err)
	require.NoError(t, s.Touch(ctx, "posts", []string{doc.ID}))

	ended := spans.Ended()
	require.Len(t, ended, 4)
	assert.Equal(t, "store.Create", ended[0].Name())
	assert.Equal(t, "store.UpdateOne", ended[2].Name())
	assert.Len(t, ended[2].Events(), 1, "error should be recorded on the span")

	metrics := collect(t, reader)
	assert.Equal(t, int64(4), sumOf(t, metrics["jsonimport.store.operations"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["jsonimport.store.errors"]))
}

type plainStore struct{ core.Store }

func TestInstrumentedStoreOptionalMethods(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	tp := sdktrace.NewTracerProvider()
	s := newInstrumentedStore(plainStore{memory.New()}, mp.Meter("test"), tp.Tracer("test"))

	assert.NoError(t, s.Touch(context.Background(), "posts", []string{"x"}))
	assert.NoError(t, s.RecordImport(context.Background(), core.AuditEntry{}))
}

func TestImportMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newImportMetrics(mp.Meter("test"))

	m.ImportFinished(context.Background(), "posts", core.ModeUpsert,
		core.ImportSummary{Created: 2, Updated: 1, Errors: 1}, 20*time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, metrics["jsonimport.import.runs"]))
	assert.Equal(t, int64(4), sumOf(t, metrics["jsonimport.import.records"]))
}

func TestMillisKeepsFraction(t *testing.T) {
	assert.Equal(t, 1.5, millis(1500*time.Microsecond))
	assert.Equal(t, 0.25, millis(250*time.Microsecond))
	assert.Equal(t, 20.0, millis(20*time.Millisecond))
}
