package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
)

// RefreshService fronts the operator "refresh now" action. Synchronous
// refreshes go straight through the resolver's force path; the async variant
// detaches and is cooldown-guarded so a button-mashing operator cannot stack
// upstream calls.
type RefreshService struct {
	resolver *ResolverService
	cooldown *caching.RefreshCooldown
	logger   *logging.ChanneledLogger
}

// NewRefreshService creates a new refresh service.
func NewRefreshService(resolver *ResolverService, cooldown *caching.RefreshCooldown, logger *logging.ChanneledLogger) *RefreshService {
	return &RefreshService{
		resolver: resolver,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Refresh performs a synchronous force refresh and returns the fresh report.
func (s *RefreshService) Refresh(ctx context.Context, env ResolveEnv, clientID string, r periods.DateRange) (*metrics.ResolvedReport, error) {
	start := time.Now()
	report, err := s.resolver.ForceRefresh(ctx, env, clientID, r)
	if s.logger != nil {
		if err != nil {
			s.logger.LogError(logging.ChannelResolver, "operator refresh", err, env.TenantID)
		} else {
			s.logger.Resolver().Info("Operator refresh completed",
				"tenantId", env.TenantID,
				"clientId", clientID,
				"platform", env.Platform,
				"range", r.String(),
				"source", report.SourceUsed,
				"duration", time.Since(start))
		}
	}
	return report, err
}

// RefreshAsync fires a detached force refresh. Returns false when the per-key
// cooldown suppressed the run.
func (s *RefreshService) RefreshAsync(env ResolveEnv, clientID string, r periods.DateRange) bool {
	cooldownKey := "refresh:" + coalesceKey(env, clientID, r)
	if !s.cooldown.TryAcquire(cooldownKey) {
		return false
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.UpstreamTimeout+5*time.Second)
		defer cancel()
		if _, err := s.Refresh(ctx, env, clientID, r); err != nil && s.logger != nil {
			s.logger.LogError(logging.ChannelResolver, "async operator refresh", err, env.TenantID)
		}
	}()
	return true
}
