package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/storesync"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Cache metrics
	CacheHitsTotal          metric.Int64Counter
	CacheMissesTotal        metric.Int64Counter
	CacheInvalidationsTotal metric.Int64Counter

	// Fetch metrics
	FetchesTotal       metric.Int64Counter
	FetchErrorsTotal   metric.Int64Counter
	FetchesSharedTotal metric.Int64Counter
	FetchDuration      metric.Float64Histogram

	// Mutation metrics
	MutationsTotal      metric.Int64Counter
	MutationErrorsTotal metric.Int64Counter

	// Session metrics
	SessionTransitionsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Cache metrics
	m.CacheHitsTotal, _ = meter.Int64Counter(
		"storesync.cache.hits.total",
		metric.WithDescription("Total number of cache reads served from a valid entry"),
		metric.WithUnit("{read}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"storesync.cache.misses.total",
		metric.WithDescription("Total number of cache reads that found no valid entry"),
		metric.WithUnit("{read}"),
	)

	m.CacheInvalidationsTotal, _ = meter.Int64Counter(
		"storesync.cache.invalidations.total",
		metric.WithDescription("Total number of cache entry invalidations"),
		metric.WithUnit("{invalidation}"),
	)

	// Fetch metrics
	m.FetchesTotal, _ = meter.Int64Counter(
		"storesync.fetches.total",
		metric.WithDescription("Total number of network fetches issued"),
		metric.WithUnit("{fetch}"),
	)

	m.FetchErrorsTotal, _ = meter.Int64Counter(
		"storesync.fetches.errors.total",
		metric.WithDescription("Total number of network fetches that failed"),
		metric.WithUnit("{error}"),
	)

	m.FetchesSharedTotal, _ = meter.Int64Counter(
		"storesync.fetches.shared.total",
		metric.WithDescription("Total number of fetch calls served by an in-flight request"),
		metric.WithUnit("{fetch}"),
	)

	m.FetchDuration, _ = meter.Float64Histogram(
		"storesync.fetches.duration",
		metric.WithDescription("Duration of network fetches"),
		metric.WithUnit("ms"),
	)

	// Mutation metrics
	m.MutationsTotal, _ = meter.Int64Counter(
		"storesync.mutations.total",
		metric.WithDescription("Total number of successful mutations"),
		metric.WithUnit("{mutation}"),
	)

	m.MutationErrorsTotal, _ = meter.Int64Counter(
		"storesync.mutations.errors.total",
		metric.WithDescription("Total number of failed mutations"),
		metric.WithUnit("{error}"),
	)

	// Session metrics
	m.SessionTransitionsTotal, _ = meter.Int64Counter(
		"storesync.session.transitions.total",
		metric.WithDescription("Total number of session state transitions"),
		metric.WithUnit("{transition}"),
	)

	return m
}
