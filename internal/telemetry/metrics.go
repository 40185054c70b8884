package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/yuno-app/policy-catalog-server/sync"

	// CacheMetricsMeterName is the name used for the cache metrics meter
	CacheMetricsMeterName = "github.com/yuno-app/policy-catalog-server/cache"
)

// SyncMetrics holds the OpenTelemetry instruments for catalog sync metrics
type SyncMetrics struct {
	syncDuration  metric.Float64Histogram
	recordsSynced metric.Int64Counter
	activeTotal   metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"yuno_catalog_sync_duration_seconds",
		metric.WithDescription("Duration of catalog sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	recordsSynced, err := meter.Int64Counter(
		"yuno_catalog_sync_records_total",
		metric.WithDescription("Records written by sync runs, by outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	activeTotal, err := meter.Int64Gauge(
		"yuno_catalog_active_policies",
		metric.WithDescription("Number of active policies in the catalog"),
		metric.WithUnit("{policy}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:  syncDuration,
		recordsSynced: recordsSynced,
		activeTotal:   activeTotal,
	}, nil
}

// RecordSyncDuration records the duration of one full sync run
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSynced counts records written during a sync run. outcome is
// "inserted" or "updated".
func (m *SyncMetrics) RecordSynced(ctx context.Context, outcome string, count int64) {
	if m == nil || m.recordsSynced == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}

	m.recordsSynced.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordActiveTotal records the current number of active policies
func (m *SyncMetrics) RecordActiveTotal(ctx context.Context, count int64) {
	if m == nil || m.activeTotal == nil {
		return
	}

	m.activeTotal.Record(ctx, count)
}

// CacheMetrics holds the OpenTelemetry instruments for read-through cache metrics
type CacheMetrics struct {
	readOutcomes  metric.Int64Counter
	persistQueued metric.Int64Counter
}

// Cache read outcome attribute values.
const (
	ReadOutcomeFresh   = "fresh"
	ReadOutcomeRefresh = "refresh"
	ReadOutcomeStale   = "stale"
	ReadOutcomeMiss    = "miss"
)

// NewCacheMetrics creates a new CacheMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCacheMetrics(provider metric.MeterProvider) (*CacheMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CacheMetricsMeterName)

	readOutcomes, err := meter.Int64Counter(
		"yuno_catalog_cache_reads_total",
		metric.WithDescription("Read-through cache reads, by outcome"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return nil, err
	}

	persistQueued, err := meter.Int64Counter(
		"yuno_catalog_cache_persist_total",
		metric.WithDescription("Background persistence batches, by disposition"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		readOutcomes:  readOutcomes,
		persistQueued: persistQueued,
	}, nil
}

// RecordRead counts one cache read with its outcome
func (m *CacheMetrics) RecordRead(ctx context.Context, outcome string) {
	if m == nil || m.readOutcomes == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}

	m.readOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPersist counts one background persistence batch. disposition is
// "queued" or "dropped".
func (m *CacheMetrics) RecordPersist(ctx context.Context, disposition string) {
	if m == nil || m.persistQueued == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("disposition", disposition),
	}

	m.persistQueued.Add(ctx, 1, metric.WithAttributes(attrs...))
}
