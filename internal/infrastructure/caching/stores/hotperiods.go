// Package stores provides concrete cache store implementations
package stores

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/types"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
)

// HotPeriodStore implements hot period caching with tenant isolation
type HotPeriodStore struct {
	tenantCaches map[string]*types.TenantMetricsCache
	mu           sync.RWMutex
}

// NewHotPeriodStore creates a new hot period cache store
func NewHotPeriodStore() *HotPeriodStore {
	return &HotPeriodStore{
		tenantCaches: make(map[string]*types.TenantMetricsCache),
	}
}

// InitializeTenant creates cache structures for a tenant
func (hs *HotPeriodStore) InitializeTenant(tenantID string) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.tenantCaches[tenantID] == nil {
		hs.tenantCaches[tenantID] = &types.TenantMetricsCache{
			HotPeriods:  make(map[string]*types.HotPeriodEntry),
			LastUpdated: time.Now().UTC(),
		}
	}
}

// GetTenantCache safely retrieves a tenant's metrics cache
func (hs *HotPeriodStore) GetTenantCache(tenantID string) (*types.TenantMetricsCache, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	cache, exists := hs.tenantCaches[tenantID]
	return cache, exists
}

// Get retrieves a hot period entry
func (hs *HotPeriodStore) Get(tenantID string, key periods.PeriodKey) (*types.HotPeriodEntry, bool) {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		return nil, false
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()

	entry, exists := cache.HotPeriods[key.CacheKey()]
	return entry, exists
}

// Set stores a hot period entry, stamping LastRefreshedAt with the current
// time. Refreshes land in place under the same key.
func (hs *HotPeriodStore) Set(tenantID string, key periods.PeriodKey, summary *metrics.PeriodSummary) {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		hs.InitializeTenant(tenantID)
		cache, _ = hs.GetTenantCache(tenantID)
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	cache.HotPeriods[key.CacheKey()] = &types.HotPeriodEntry{
		Key:             key,
		Summary:         summary,
		LastRefreshedAt: time.Now().UTC(),
	}
	cache.LastUpdated = time.Now().UTC()
}

// Delete removes a hot period entry
func (hs *HotPeriodStore) Delete(tenantID string, key periods.PeriodKey) {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		return
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	delete(cache.HotPeriods, key.CacheKey())
	cache.LastUpdated = time.Now().UTC()
}

// Keys returns the period keys of every cached entry for a tenant
func (hs *HotPeriodStore) Keys(tenantID string) []periods.PeriodKey {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		return nil
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()

	keys := make([]periods.PeriodKey, 0, len(cache.HotPeriods))
	for _, entry := range cache.HotPeriods {
		keys = append(keys, entry.Key)
	}
	return keys
}

// PurgeExpired removes entries whose age exceeds the hot cache TTL. The
// archival lifecycle is the primary remover; this sweep only bounds memory
// for periods nobody asked about again.
func (hs *HotPeriodStore) PurgeExpired(tenantID string) int {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		return 0
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	purged := 0
	for cacheKey, entry := range cache.HotPeriods {
		if time.Since(entry.LastRefreshedAt) > config.HotCacheTTL*6 {
			delete(cache.HotPeriods, cacheKey)
			purged++
		}
	}
	if purged > 0 {
		cache.LastUpdated = time.Now().UTC()
	}
	return purged
}

// InvalidateTenant clears all hot period entries for a tenant
func (hs *HotPeriodStore) InvalidateTenant(tenantID string) {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		return
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	cache.HotPeriods = make(map[string]*types.HotPeriodEntry)
	cache.LastUpdated = time.Now().UTC()
}

// GetAllTenantIDs returns every tenant with an initialized cache
func (hs *HotPeriodStore) GetAllTenantIDs() []string {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	ids := make([]string, 0, len(hs.tenantCaches))
	for tenantID := range hs.tenantCaches {
		ids = append(ids, tenantID)
	}
	return ids
}

// Summary returns cache status for debugging and the ops dashboard
func (hs *HotPeriodStore) Summary(tenantID string) map[string]any {
	cache, exists := hs.GetTenantCache(tenantID)
	if !exists {
		return map[string]any{"exists": false}
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()

	stale := 0
	for _, entry := range cache.HotPeriods {
		if !entry.IsFresh(config.HotCacheTTL) {
			stale++
		}
	}

	return map[string]any{
		"exists":      true,
		"hotPeriods":  len(cache.HotPeriods),
		"staleCount":  stale,
		"lastUpdated": cache.LastUpdated,
	}
}
