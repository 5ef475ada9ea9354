package upstream

import (
	"fmt"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
)

// Registry holds one adapter per platform for a single tenant.
type Registry struct {
	adapters map[metrics.Platform]FetchAdapter
}

// NewRegistry creates an adapter registry from the given adapters.
func NewRegistry(adapters ...FetchAdapter) *Registry {
	registry := &Registry{adapters: make(map[metrics.Platform]FetchAdapter)}
	for _, adapter := range adapters {
		registry.adapters[adapter.Platform()] = adapter
	}
	return registry
}

// For returns the adapter for one platform.
func (r *Registry) For(platform metrics.Platform) (FetchAdapter, error) {
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no fetch adapter registered for platform %q: %w", platform, metrics.ErrUpstreamAuthInvalid)
	}
	return adapter, nil
}

// Platforms lists the registered platforms.
func (r *Registry) Platforms() []metrics.Platform {
	platforms := make([]metrics.Platform, 0, len(r.adapters))
	for platform := range r.adapters {
		platforms = append(platforms, platform)
	}
	return platforms
}
