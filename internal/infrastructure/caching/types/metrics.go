// Package types defines cache data structures for the hot period tier.
package types

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
)

// HotPeriodEntry is one cached current-period summary.
type HotPeriodEntry struct {
	Key             periods.PeriodKey      `json:"key"`
	Summary         *metrics.PeriodSummary `json:"summary"`
	LastRefreshedAt time.Time              `json:"lastRefreshedAt"`
}

// IsFresh is a pure age comparison against the freshness window.
func (e *HotPeriodEntry) IsFresh(maxAge time.Duration) bool {
	if e == nil {
		return false
	}
	return time.Since(e.LastRefreshedAt) <= maxAge
}

// TenantMetricsCache holds all hot period entries for one tenant.
type TenantMetricsCache struct {
	Mu          sync.RWMutex
	HotPeriods  map[string]*HotPeriodEntry
	LastUpdated time.Time
}
