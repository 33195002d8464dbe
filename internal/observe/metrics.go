// Package observe provides application-wide observability primitives for the
// knowledge platform core: OpenTelemetry metrics, distributed tracing, and
// structured logging tied together through context.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all core metrics.
const meterName = "github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per suspension point (spec §5) ---

	// ExtractorDuration tracks a single relation extractor's run.
	ExtractorDuration metric.Float64Histogram

	// EmbeddingDuration tracks embedding backend RPC latency (single or batch).
	EmbeddingDuration metric.Float64Histogram

	// VectorIndexDuration tracks vector index RPC latency (upsert/search/delete).
	VectorIndexDuration metric.Float64Histogram

	// TripleStoreDuration tracks triple store operation latency (structural,
	// temporal, and mutation operations).
	TripleStoreDuration metric.Float64Histogram

	// SPARQLDuration tracks SPARQL execution latency.
	SPARQLDuration metric.Float64Histogram

	// --- Counters ---

	// RelationsExtracted counts candidate relations emitted by extractors.
	// Use with attribute: attribute.String("extractor", ...)
	RelationsExtracted metric.Int64Counter

	// RelationsDropped counts relations dropped by validation or dedup.
	// Use with attribute: attribute.String("reason", ...)
	RelationsDropped metric.Int64Counter

	// TriplesWritten counts triples created/updated/deleted/restored.
	// Use with attribute: attribute.String("change_type", ...)
	TriplesWritten metric.Int64Counter

	// ChunksEmbedded counts chunks successfully embedded and upserted.
	ChunksEmbedded metric.Int64Counter

	// --- Error counters ---

	// CoreErrors counts failures by component and error kind.
	// Use with attributes: attribute.String("component", ...), attribute.String("kind", ...)
	CoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveTenants tracks the number of tenants with at least one graph.
	ActiveTenants metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for the
// core's data-plane operations — dominated by network RPCs to the embedding
// backend and the vector index.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExtractorDuration, err = m.Float64Histogram("knowledgecore.extractor.duration",
		metric.WithDescription("Latency of a single relation extractor run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("knowledgecore.embedding.duration",
		metric.WithDescription("Latency of an embedding backend call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VectorIndexDuration, err = m.Float64Histogram("knowledgecore.vectorindex.duration",
		metric.WithDescription("Latency of a vector index RPC (upsert/search/delete)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TripleStoreDuration, err = m.Float64Histogram("knowledgecore.triplestore.duration",
		metric.WithDescription("Latency of a triple store operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SPARQLDuration, err = m.Float64Histogram("knowledgecore.sparql.duration",
		metric.WithDescription("Latency of SPARQL query execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.RelationsExtracted, err = m.Int64Counter("knowledgecore.relations.extracted",
		metric.WithDescription("Total candidate relations emitted by extractors."),
	); err != nil {
		return nil, err
	}
	if met.RelationsDropped, err = m.Int64Counter("knowledgecore.relations.dropped",
		metric.WithDescription("Total relations dropped by validation or deduplication."),
	); err != nil {
		return nil, err
	}
	if met.TriplesWritten, err = m.Int64Counter("knowledgecore.triples.written",
		metric.WithDescription("Total triple mutations by change type."),
	); err != nil {
		return nil, err
	}
	if met.ChunksEmbedded, err = m.Int64Counter("knowledgecore.chunks.embedded",
		metric.WithDescription("Total chunks embedded and upserted into the vector index."),
	); err != nil {
		return nil, err
	}

	if met.CoreErrors, err = m.Int64Counter("knowledgecore.errors",
		metric.WithDescription("Total errors by component and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveTenants, err = m.Int64UpDownCounter("knowledgecore.active_tenants",
		metric.WithDescription("Number of tenants with at least one graph."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRelationsExtracted is a convenience method recording how many
// candidate relations a single extractor produced.
func (m *Metrics) RecordRelationsExtracted(ctx context.Context, extractor string, n int64) {
	m.RelationsExtracted.Add(ctx, n, metric.WithAttributes(attribute.String("extractor", extractor)))
}

// RecordRelationDropped is a convenience method recording one relation
// dropped for the given reason (e.g. "low_confidence", "duplicate").
func (m *Metrics) RecordRelationDropped(ctx context.Context, reason string) {
	m.RelationsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTripleWritten is a convenience method recording one triple mutation.
func (m *Metrics) RecordTripleWritten(ctx context.Context, changeType string) {
	m.TriplesWritten.Add(ctx, 1, metric.WithAttributes(attribute.String("change_type", changeType)))
}

// RecordCoreError is a convenience method recording one error by component
// and kind.
func (m *Metrics) RecordCoreError(ctx context.Context, component, kind string) {
	m.CoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("kind", kind),
		),
	)
}
