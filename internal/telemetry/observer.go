package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

const importScopeName = "github.com/JonMunkholm/jsonimport/import"

// ImportMetrics records per-run outcome counters. It implements
// core.ImportObserver.
type ImportMetrics struct {
	runs     metric.Int64Counter
	records  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewImportMetrics creates the import instruments on the global meter.
// With telemetry disabled the global meter is a no-op.
func NewImportMetrics() *ImportMetrics {
	return newImportMetrics(Meter(importScopeName))
}

func newImportMetrics(m metric.Meter) *ImportMetrics {
	runs, _ := m.Int64Counter("jsonimport.import.runs",
		metric.WithDescription("Completed import runs"),
	)
	records, _ := m.Int64Counter("jsonimport.import.records",
		metric.WithDescription("Imported records by outcome"),
	)
	duration, _ := m.Float64Histogram("jsonimport.import.duration",
		metric.WithDescription("Import run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &ImportMetrics{runs: runs, records: records, duration: duration}
}

// ImportFinished records the outcome counts of one run.
func (m *ImportMetrics) ImportFinished(ctx context.Context, collection string, mode core.ImportMode, summary core.ImportSummary, elapsed time.Duration) {
	base := []attribute.KeyValue{
		attribute.String("import.collection", collection),
		attribute.String("import.mode", string(mode)),
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(base...))
	m.duration.Record(ctx, millis(elapsed), metric.WithAttributes(base...))

	for status, n := range map[core.ImportStatus]int{
		core.StatusCreated: summary.Created,
		core.StatusUpdated: summary.Updated,
		core.StatusSkipped: summary.Skipped,
		core.StatusError:   summary.Errors,
	} {
		if n == 0 {
			continue
		}
		attrs := append([]attribute.KeyValue{attribute.String("import.status", string(status))}, base...)
		m.records.Add(ctx, int64(n), metric.WithAttributes(attrs...))
	}
}

// millis converts d to fractional milliseconds.
func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
