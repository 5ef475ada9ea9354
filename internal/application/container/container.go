// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/AtRiskMedia/adstack-go/internal/application/services"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services (stateless singletons)
	ResolverService *services.ResolverService
	RefreshService  *services.RefreshService
	ArchivalService *services.ArchivalService
	AuthService     *services.AuthService

	// Concurrency guards shared by the resolver and the background workers
	Coalescer *caching.RequestCoalescer
	Cooldown  *caching.RefreshCooldown

	// Infrastructure dependencies
	TenantManager *tenant.Manager
	CacheManager  *manager.Manager
	Broadcaster   *messaging.SysOpBroadcaster
	Logger        *logging.ChanneledLogger
}

// NewContainer creates and wires all singleton services
func NewContainer(tenantManager *tenant.Manager, cacheManager *manager.Manager, logger *logging.ChanneledLogger) *Container {
	coalescer := caching.NewRequestCoalescer(config.CoalesceCeiling)
	cooldown := caching.NewRefreshCooldown(config.RefreshCooldown)

	resolverService := services.NewResolverService(coalescer, cooldown, logger)

	return &Container{
		ResolverService: resolverService,
		RefreshService:  services.NewRefreshService(resolverService, cooldown, logger),
		ArchivalService: services.NewArchivalService(logger),
		AuthService:     services.NewAuthService(logger),

		Coalescer: coalescer,
		Cooldown:  cooldown,

		TenantManager: tenantManager,
		CacheManager:  cacheManager,
		Broadcaster:   messaging.NewSysOpBroadcaster(cacheManager, coalescer),
		Logger:        logger,
	}
}
