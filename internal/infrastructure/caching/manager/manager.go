// Package manager provides centralized cache operations with proper tenant isolation
package manager

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/types"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
)

// Interface assertion to ensure Manager implements the cache contracts.
var _ interfaces.Cache = (*Manager)(nil)

// Manager provides centralized cache operations with proper tenant isolation
// by delegating to the hot period store.
type Manager struct {
	Mu             sync.RWMutex
	LastAccessed   map[string]time.Time
	hotPeriodStore *stores.HotPeriodStore
	logger         *logging.ChanneledLogger
}

func NewManager(logger *logging.ChanneledLogger) *Manager {
	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "stores", []string{"hotPeriods"})
	}

	return &Manager{
		LastAccessed:   make(map[string]time.Time),
		hotPeriodStore: stores.NewHotPeriodStore(),
		logger:         logger,
	}
}

func (m *Manager) updateTenantAccessTime(tenantID string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.LastAccessed[tenantID] = time.Now().UTC()
}

func (m *Manager) InitializeTenant(tenantID string) {
	start := time.Now()
	if m.logger != nil {
		m.logger.Cache().Debug("Initializing tenant cache", "tenantId", tenantID)
	}

	m.hotPeriodStore.InitializeTenant(tenantID)
	m.updateTenantAccessTime(tenantID)

	if m.logger != nil {
		m.logger.Cache().Info("Tenant cache initialized", "tenantId", tenantID, "duration", time.Since(start))
	}
}

func (m *Manager) GetHotPeriod(tenantID string, key periods.PeriodKey) (*types.HotPeriodEntry, bool) {
	entry, found := m.hotPeriodStore.Get(tenantID, key)
	if m.logger != nil {
		m.logger.LogCacheOperation("get", key.CacheKey(), found, tenantID)
	}
	return entry, found
}

func (m *Manager) SetHotPeriod(tenantID string, key periods.PeriodKey, summary *metrics.PeriodSummary) {
	m.hotPeriodStore.Set(tenantID, key, summary)
	m.updateTenantAccessTime(tenantID)
}

func (m *Manager) DeleteHotPeriod(tenantID string, key periods.PeriodKey) {
	m.hotPeriodStore.Delete(tenantID, key)
	m.updateTenantAccessTime(tenantID)
}

func (m *Manager) HotPeriodKeys(tenantID string) []periods.PeriodKey {
	return m.hotPeriodStore.Keys(tenantID)
}

func (m *Manager) PurgeExpiredHotPeriods(tenantID string) int {
	purged := m.hotPeriodStore.PurgeExpired(tenantID)
	if purged > 0 {
		m.updateTenantAccessTime(tenantID)
	}
	return purged
}

func (m *Manager) InvalidateTenant(tenantID string) {
	start := time.Now()
	if m.logger != nil {
		m.logger.Cache().Debug("Invalidating tenant cache", "tenantId", tenantID)
	}

	m.hotPeriodStore.InvalidateTenant(tenantID)
	m.updateTenantAccessTime(tenantID)

	if m.logger != nil {
		m.logger.Cache().Info("Tenant cache invalidated", "tenantId", tenantID, "duration", time.Since(start))
	}
}

func (m *Manager) InvalidateAll() {
	for _, tenantID := range m.hotPeriodStore.GetAllTenantIDs() {
		m.InvalidateTenant(tenantID)
	}
}

func (m *Manager) GetAllTenantIDs() []string {
	return m.hotPeriodStore.GetAllTenantIDs()
}

func (m *Manager) GetCacheSummary(tenantID string) map[string]any {
	return m.hotPeriodStore.Summary(tenantID)
}

func (m *Manager) Health() map[string]any {
	return map[string]any{"status": "ok", "tenants": len(m.hotPeriodStore.GetAllTenantIDs())}
}
