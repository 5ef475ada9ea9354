// Package cleanup provides background worker
package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
)

// Worker handles background cache cleanup operations
type Worker struct {
	cache     interfaces.Cache
	coalescer *caching.RequestCoalescer
	cooldown  *caching.RefreshCooldown
	config    *Config
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(cache interfaces.Cache, coalescer *caching.RequestCoalescer, cooldown *caching.RefreshCooldown, config *Config) *Worker {
	return &Worker{
		cache:     cache,
		coalescer: coalescer,
		cooldown:  cooldown,
		config:    config,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	log.Printf("Cache cleanup worker started (interval: %v, verbose: %v)",
		w.config.CleanupInterval, w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			log.Println("Cache cleanup worker stopping...")
			return
		case <-ticker.C:
			w.performCleanup(ctx)
		}
	}
}

// performCleanup executes cleanup for all active tenants
func (w *Worker) performCleanup(ctx context.Context) {
	start := time.Now()
	reporter := NewReporter(w.cache)

	tenants, err := w.getActiveTenants()
	if err != nil {
		reporter.LogError("Cache cleanup failed to get active tenants", err)
		return
	}

	if w.config.VerboseReporting {
		reporter.LogStage("PERIODIC CACHE CLEANUP")

		for _, tenantID := range tenants {
			fmt.Print(reporter.GenerateTenantReport(tenantID))
		}
	}

	var totalCleaned int
	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			return
		default:
			totalCleaned += w.cache.PurgeExpiredHotPeriods(tenantID)
		}
	}

	// Abandoned flights and spent cooldown stamps share the same sweep cycle.
	totalCleaned += w.coalescer.Sweep()
	totalCleaned += w.cooldown.Sweep()

	duration := time.Since(start)
	if totalCleaned > 0 {
		reporter.LogSuccess("Cache cleanup finished: %d items cleaned from %d tenants in %v",
			totalCleaned, len(tenants), duration)
	} else if w.config.VerboseReporting {
		reporter.LogInfo("Cache cleanup completed - no expired items found (%v)", duration)
	}
}

// getActiveTenants loads the tenant registry and returns active tenant IDs
func (w *Worker) getActiveTenants() ([]string, error) {
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return nil, err
	}

	activeTenants := make([]string, 0)
	for tenantID, tenantInfo := range registry.Tenants {
		if tenantInfo.Status == "active" {
			activeTenants = append(activeTenants, tenantID)
		}
	}

	return activeTenants, nil
}
