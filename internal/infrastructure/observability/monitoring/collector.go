// Package monitoring provides the Prometheus metrics for the resolution engine.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adstack"

// Resolution metrics
var (
	// ResolutionsTotal counts resolutions by platform and the tier that answered.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolutions by platform and source tier",
		},
		[]string{"platform", "source"},
	)

	// ResolutionDuration observes end-to-end resolution latency.
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "End-to-end resolution latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"platform"},
	)

	// DegradedResolutionsTotal counts stale responses served under upstream failure.
	DegradedResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_resolutions_total",
			Help:      "Resolutions answered from stale cache while upstream was failing",
		},
		[]string{"platform"},
	)

	// CoalescedFollowersTotal counts callers that piggybacked on another caller's flight.
	CoalescedFollowersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_followers_total",
			Help:      "Callers that awaited an existing in-flight resolution",
		},
	)
)

// Upstream metrics
var (
	// UpstreamFetchesTotal counts live platform API calls by outcome.
	UpstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Live upstream fetches by platform and result",
		},
		[]string{"platform", "result"}, // result: success, unavailable, auth_invalid
	)

	// UpstreamFetchDuration observes live fetch latency.
	UpstreamFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Live upstream fetch latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"platform"},
	)

	// BackgroundRefreshesTotal counts fire-and-forget stale refreshes by outcome.
	BackgroundRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_refreshes_total",
			Help:      "Background stale-entry refreshes by result",
		},
		[]string{"result"}, // result: success, failed, cooldown
	)
)

// Archival metrics
var (
	// ArchivalRunsTotal counts lifecycle runs by trigger.
	ArchivalRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archival_runs_total",
			Help:      "Archival lifecycle runs by trigger",
		},
		[]string{"trigger"}, // trigger: monthly, weekly, retention
	)

	// ArchivedPeriodsTotal counts hot entries migrated into the archive.
	ArchivedPeriodsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_periods_total",
			Help:      "Closed periods migrated from hot cache to archive",
		},
		[]string{"period_type"},
	)

	// PrunedArchiveRowsTotal counts archive rows removed by retention.
	PrunedArchiveRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_archive_rows_total",
			Help:      "Archive rows removed by the retention job",
		},
		[]string{"period_type"},
	)
)

// Cache metrics
var (
	// HotCacheEntries tracks the live hot-period entry count per tenant.
	HotCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hot_cache_entries",
			Help:      "Hot period cache entries per tenant",
		},
		[]string{"tenant"},
	)
)

// RecordResolution records one finished resolution.
func RecordResolution(platform, source string, durationSeconds float64, degraded bool) {
	ResolutionsTotal.WithLabelValues(platform, source).Inc()
	ResolutionDuration.WithLabelValues(platform).Observe(durationSeconds)
	if degraded {
		DegradedResolutionsTotal.WithLabelValues(platform).Inc()
	}
}

// RecordUpstreamFetch records one live platform API call.
func RecordUpstreamFetch(platform, result string, durationSeconds float64) {
	UpstreamFetchesTotal.WithLabelValues(platform, result).Inc()
	UpstreamFetchDuration.WithLabelValues(platform).Observe(durationSeconds)
}

// RecordBackgroundRefresh records one background refresh attempt.
func RecordBackgroundRefresh(result string) {
	BackgroundRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordArchivalRun records one lifecycle run and its migrated period count.
func RecordArchivalRun(trigger, periodType string, archived int) {
	ArchivalRunsTotal.WithLabelValues(trigger).Inc()
	if archived > 0 {
		ArchivedPeriodsTotal.WithLabelValues(periodType).Add(float64(archived))
	}
}

// RecordRetentionPrune records archive rows removed for one period type.
func RecordRetentionPrune(periodType string, pruned int64) {
	ArchivalRunsTotal.WithLabelValues("retention").Inc()
	if pruned > 0 {
		PrunedArchiveRowsTotal.WithLabelValues(periodType).Add(float64(pruned))
	}
}
