package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

const storeScopeName = "github.com/JonMunkholm/jsonimport/store"

// InstrumentedStore wraps core.Store with a span and metrics per call.
// Touch and RecordImport are forwarded when the inner store supports them.
type InstrumentedStore struct {
	inner  core.Store
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is.
func WrapStore(s core.Store) core.Store {
	if !Enabled() {
		return s
	}
	return newInstrumentedStore(s, Meter(storeScopeName), Tracer(storeScopeName))
}

func newInstrumentedStore(s core.Store, m metric.Meter, tr trace.Tracer) *InstrumentedStore {
	ops, _ := m.Int64Counter("jsonimport.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("jsonimport.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("jsonimport.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	return &InstrumentedStore{inner: s, tracer: tr, ops: ops, dur: dur, errs: errs}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStore) Unwrap() core.Store {
	return s.inner
}

func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	s.dur.Record(ctx, millis(time.Since(start)), metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStore) Create(ctx context.Context, collection string, data core.Document) (core.StoredDocument, error) {
	attrs := []attribute.KeyValue{
		attribute.String("import.collection", collection),
		attribute.Int("import.field.count", len(data)),
	}
	ctx, span, t := s.op(ctx, "Create", attrs...)
	doc, err := s.inner.Create(ctx, collection, data)
	s.done(ctx, span, t, err, attrs...)
	return doc, err
}

func (s *InstrumentedStore) FindEquals(ctx context.Context, collection, field string, value any) (core.FindResult, error) {
	attrs := []attribute.KeyValue{
		attribute.String("import.collection", collection),
		attribute.String("import.match_field", field),
	}
	ctx, span, t := s.op(ctx, "FindEquals", attrs...)
	res, err := s.inner.FindEquals(ctx, collection, field, value)
	if err == nil {
		span.SetAttributes(attribute.Int("import.match.count", len(res.Docs)))
	}
	s.done(ctx, span, t, err, attrs...)
	return res, err
}

func (s *InstrumentedStore) UpdateOne(ctx context.Context, collection, id string, data core.Document) (core.StoredDocument, error) {
	attrs := []attribute.KeyValue{
		attribute.String("import.collection", collection),
		attribute.Int("import.field.count", len(data)),
	}
	ctx, span, t := s.op(ctx, "UpdateOne", attrs...)
	span.SetAttributes(attribute.String("import.document.id", id))
	doc, err := s.inner.UpdateOne(ctx, collection, id, data)
	s.done(ctx, span, t, err, attrs...)
	return doc, err
}

func (s *InstrumentedStore) Touch(ctx context.Context, collection string, ids []string) error {
	toucher, ok := s.inner.(core.Toucher)
	if !ok {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String("import.collection", collection),
		attribute.Int("import.document.count", len(ids)),
	}
	ctx, span, t := s.op(ctx, "Touch", attrs...)
	err := toucher.Touch(ctx, collection, ids)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) RecordImport(ctx context.Context, entry core.AuditEntry) error {
	rec, ok := s.inner.(core.AuditRecorder)
	if !ok {
		return nil
	}
	attrs := []attribute.KeyValue{attribute.String("import.collection", entry.Collection)}
	ctx, span, t := s.op(ctx, "RecordImport", attrs...)
	err := rec.RecordImport(ctx, entry)
	s.done(ctx, span, t, err, attrs...)
	return err
}
