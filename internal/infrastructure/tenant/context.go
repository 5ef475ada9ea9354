// Package tenant provides tenant context management for multi-tenant support.
package tenant

import (
	"sync"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/repositories"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/persistence/auth"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/persistence/database"
	persistenceMetrics "github.com/AtRiskMedia/adstack-go/internal/infrastructure/persistence/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/upstream"
)

// Context holds tenant-specific request context
type Context struct {
	TenantID     string
	Config       *Config
	Database     *Database
	Status       string
	CacheManager *manager.Manager
	Logger       *logging.ChanneledLogger

	adapterOnce sync.Once
	adapters    *upstream.Registry
}

// Close cleans up the tenant context
func (ctx *Context) Close() error {
	if ctx.Database != nil {
		return ctx.Database.Close()
	}
	return nil
}

// GetTenantID returns the tenant ID for this context
func (ctx *Context) GetTenantID() string {
	return ctx.TenantID
}

// GetConfig returns the tenant configuration
func (ctx *Context) GetConfig() *Config {
	return ctx.Config
}

// GetDatabase returns the tenant database connection
func (ctx *Context) GetDatabase() *Database {
	return ctx.Database
}

// GetStatus returns the tenant status
func (ctx *Context) GetStatus() string {
	return ctx.Status
}

// GetCacheManager returns the cache manager
func (ctx *Context) GetCacheManager() *manager.Manager {
	return ctx.CacheManager
}

// IsActive returns true if the tenant is active
func (ctx *Context) IsActive() bool {
	return ctx.Status == "active"
}

// GetDatabaseInfo returns database connection information for logging
func (ctx *Context) GetDatabaseInfo() string {
	if ctx.Database != nil {
		return ctx.Database.GetConnectionInfo()
	}
	return "no database connection"
}

// =============================================================================
// Repository Factory Methods
// =============================================================================

// LedgerRepo returns a day-ledger repository instance.
// It returns the interface type from the domain layer.
func (ctx *Context) LedgerRepo() repositories.LedgerRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceMetrics.NewSQLDayLedgerRepository(db, ctx.Logger, ctx.TenantID)
}

// ArchiveRepo returns a period-archive repository instance.
// It returns the interface type from the domain layer.
func (ctx *Context) ArchiveRepo() repositories.ArchiveRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceMetrics.NewSQLArchiveRepository(db, ctx.Logger, ctx.TenantID)
}

// OperatorRepo returns an operator repository instance.
func (ctx *Context) OperatorRepo() repositories.OperatorRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return auth.NewSQLOperatorRepository(db, ctx.Logger, ctx.TenantID)
}

// AdapterRegistry lazily builds the per-platform fetch adapters from the
// tenant's credential set. The registry is shared for the context lifetime so
// adapters can reuse OAuth tokens.
func (ctx *Context) AdapterRegistry() *upstream.Registry {
	ctx.adapterOnce.Do(func() {
		metaAccounts := make(map[string]string)
		googleCustomers := make(map[string]string)
		for clientID, accounts := range ctx.Config.Clients {
			if accounts.MetaAccountID != "" {
				metaAccounts[clientID] = accounts.MetaAccountID
			}
			if accounts.GoogleCustomerID != "" {
				googleCustomers[clientID] = accounts.GoogleCustomerID
			}
		}

		ctx.adapters = upstream.NewRegistry(
			upstream.NewMetaAdapter(ctx.Config.MetaAccessToken, metaAccounts, ctx.Logger),
			upstream.NewGoogleAdsAdapter(upstream.GoogleAdsCredentials{
				DeveloperToken: ctx.Config.GoogleAdsDevToken,
				ClientID:       ctx.Config.GoogleAdsClientID,
				ClientSecret:   ctx.Config.GoogleAdsClientSecret,
				RefreshToken:   ctx.Config.GoogleAdsRefreshToken,
			}, googleCustomers, ctx.Logger),
		)
	})
	return ctx.adapters
}

// AdapterFor returns the fetch adapter for one platform.
func (ctx *Context) AdapterFor(platform metrics.Platform) (upstream.FetchAdapter, error) {
	return ctx.AdapterRegistry().For(platform)
}
