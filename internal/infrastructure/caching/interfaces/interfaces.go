// Package interfaces declares the cache contracts consumed by the
// application layer.
package interfaces

import (
	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/types"
)

// MetricsCache is the hot period cache seen by the resolver and the archival
// lifecycle.
type MetricsCache interface {
	GetHotPeriod(tenantID string, key periods.PeriodKey) (*types.HotPeriodEntry, bool)
	SetHotPeriod(tenantID string, key periods.PeriodKey, summary *metrics.PeriodSummary)
	DeleteHotPeriod(tenantID string, key periods.PeriodKey)
	HotPeriodKeys(tenantID string) []periods.PeriodKey
}

// Cache is the full management surface, used by startup, cleanup, and the
// ops dashboard.
type Cache interface {
	MetricsCache
	InitializeTenant(tenantID string)
	InvalidateTenant(tenantID string)
	PurgeExpiredHotPeriods(tenantID string) int
	GetCacheSummary(tenantID string) map[string]any
}
