// Package services provides application-level services that orchestrate
// business logic and coordinate between repositories and domain entities.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/domain/reconcile"
	"github.com/AtRiskMedia/adstack-go/internal/domain/repositories"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/monitoring"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/upstream"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
)

// ResolveEnv bundles the per-tenant collaborators one resolution needs. It is
// assembled from a tenant context on the request path and from fakes in tests.
type ResolveEnv struct {
	TenantID string
	Platform metrics.Platform
	Ledger   repositories.LedgerRepository
	Archive  repositories.ArchiveRepository
	Adapter  upstream.FetchAdapter
	Cache    interfaces.MetricsCache
}

// EnvFromTenant builds a resolve environment from a live tenant context.
func EnvFromTenant(tenantCtx *tenant.Context, platform metrics.Platform) (ResolveEnv, error) {
	adapter, err := tenantCtx.AdapterFor(platform)
	if err != nil {
		return ResolveEnv{}, err
	}
	return ResolveEnv{
		TenantID: tenantCtx.TenantID,
		Platform: platform,
		Ledger:   tenantCtx.LedgerRepo(),
		Archive:  tenantCtx.ArchiveRepo(),
		Adapter:  adapter,
		Cache:    tenantCtx.CacheManager,
	}, nil
}

// ResolverService walks the tier chain for one date range: hot cache for
// current periods, archive then day ledger then live fetch for historical
// ones. Every external request is funneled through the coalescer first.
type ResolverService struct {
	coalescer *caching.RequestCoalescer
	cooldown  *caching.RefreshCooldown
	logger    *logging.ChanneledLogger
	now       func() time.Time
}

// NewResolverService creates a new resolver service.
func NewResolverService(coalescer *caching.RequestCoalescer, cooldown *caching.RefreshCooldown, logger *logging.ChanneledLogger) *ResolverService {
	return &ResolverService{
		coalescer: coalescer,
		cooldown:  cooldown,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the reference clock. Used by the archival scheduler and tests.
func (s *ResolverService) SetClock(now func() time.Time) {
	s.now = now
}

func coalesceKey(env ResolveEnv, clientID string, r periods.DateRange) string {
	return env.TenantID + ":" + clientID + ":" + string(env.Platform) + ":" + r.String()
}

// Resolve answers one date-range query. Concurrent identical requests share a
// single flight; only the leader walks the tiers.
func (s *ResolverService) Resolve(ctx context.Context, env ResolveEnv, clientID string, r periods.DateRange) (*metrics.ResolvedReport, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid date range %s: %w", r.String(), metrics.ErrAmbiguousRange)
	}

	start := time.Now()
	key := coalesceKey(env, clientID, r)
	flight, leader := s.coalescer.Acquire(key)

	if !leader {
		monitoring.CoalescedFollowersTotal.Inc()
		select {
		case <-flight.Done:
			return flight.Result()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	report, err := s.resolveUncoalesced(ctx, env, clientID, r)
	s.coalescer.Complete(key, flight, report, err)

	if report != nil {
		monitoring.RecordResolution(string(env.Platform), string(report.SourceUsed), time.Since(start).Seconds(), report.Degraded)
		if s.logger != nil {
			s.logger.Resolver().Info("Resolution completed",
				"tenantId", env.TenantID,
				"clientId", clientID,
				"platform", env.Platform,
				"range", r.String(),
				"source", report.SourceUsed,
				"degraded", report.Degraded,
				"duration", time.Since(start))
		}
	}
	return report, err
}

// resolveUncoalesced runs the tier walk for a single leader.
func (s *ResolverService) resolveUncoalesced(ctx context.Context, env ResolveEnv, clientID string, r periods.DateRange) (*metrics.ResolvedReport, error) {
	key, classification, aligned := periods.KeyFor(clientID, env.Platform, s.now(), r)
	if !aligned {
		return s.resolveSplit(ctx, env, clientID, r)
	}

	if classification.IsCurrent {
		return s.resolveCurrent(ctx, env, clientID, key, r)
	}
	return s.resolveHistorical(ctx, env, clientID, key, r)
}

// resolveCurrent serves an open period from the hot cache, refreshing stale
// entries in the background and fetching synchronously only on a miss.
func (s *ResolverService) resolveCurrent(ctx context.Context, env ResolveEnv, clientID string, key periods.PeriodKey, r periods.DateRange) (*metrics.ResolvedReport, error) {
	maxAge := config.HotCacheTTL
	if key.PeriodType == periods.PeriodDay {
		maxAge = config.CurrentDayTTL
	}

	if entry, found := env.Cache.GetHotPeriod(env.TenantID, key); found {
		if entry.IsFresh(maxAge) {
			return successReport(entry.Summary, metrics.SourceHotCacheFresh, key.PeriodType, false), nil
		}

		// Stale hit still answers immediately; recency beats completeness
		// for open periods. The refresh happens off the request path.
		s.triggerBackgroundRefresh(env, clientID, key, r)
		return successReport(entry.Summary, metrics.SourceHotCacheStale, key.PeriodType, false), nil
	}

	payload, err := s.fetchUpstream(ctx, env, clientID, r)
	if err != nil {
		if s.logger != nil {
			s.logger.LogError(logging.ChannelResolver, "current-period live fetch", err, env.TenantID)
		}
		return failureReport(key.PeriodType, err), err
	}

	summary := reconcile.FromUpstream(payload)
	env.Cache.SetHotPeriod(env.TenantID, key, summary)
	return successReport(summary, metrics.SourceLiveFetch, key.PeriodType, false), nil
}

// resolveHistorical walks archive, then day ledger, then a backfill fetch.
func (s *ResolverService) resolveHistorical(ctx context.Context, env ResolveEnv, clientID string, key periods.PeriodKey, r periods.DateRange) (*metrics.ResolvedReport, error) {
	entry, err := env.Archive.Get(key)
	if err != nil {
		// A failing archive read downgrades to the next tier.
		if s.logger != nil {
			s.logger.LogError(logging.ChannelArchive, "archive read", err, env.TenantID)
		}
	}
	if entry != nil && entry.Summary.HasSignal() {
		summary := reconcile.Reconcile(reconcile.Sources{Summary: entry.Summary})
		return successReport(summary, metrics.SourceArchive, key.PeriodType, false), nil
	}

	rows, err := env.Ledger.GetRange(clientID, env.Platform, r)
	if err != nil {
		if s.logger != nil {
			s.logger.LogError(logging.ChannelLedger, "day ledger range read", err, env.TenantID)
		}
	}
	if len(rows) > 0 {
		return successReport(reconcile.FromLedger(rows), metrics.SourceDayLedger, key.PeriodType, false), nil
	}

	payload, err := s.fetchUpstream(ctx, env, clientID, r)
	if err != nil {
		// Never cache or archive a fabricated zero for a closed period.
		noData := fmt.Errorf("all tiers empty for %s: %v: %w", key.CacheKey(), err, metrics.ErrNoData)
		return failureReport(key.PeriodType, noData), noData
	}

	summary := reconcile.FromUpstream(payload)
	if summary.HasSignal() {
		if archiveErr := env.Archive.Upsert(key, summary); archiveErr != nil && s.logger != nil {
			// Write failures never fail the caller's read.
			s.logger.LogError(logging.ChannelArchive, "backfill archive write", archiveErr, env.TenantID)
		}
	}
	return successReport(summary, metrics.SourceLiveFetch, key.PeriodType, false), nil
}

// resolveSplit handles ranges that do not align to a whole period: break on
// month boundaries, resolve each piece, and sum.
func (s *ResolverService) resolveSplit(ctx context.Context, env ResolveEnv, clientID string, r periods.DateRange) (*metrics.ResolvedReport, error) {
	parts := periods.SplitByMonth(r)
	if len(parts) == 0 {
		return nil, fmt.Errorf("range %s cannot be split: %w", r.String(), metrics.ErrAmbiguousRange)
	}

	summaries := make([]*metrics.PeriodSummary, 0, len(parts))
	source := metrics.SourceNone
	degraded := false

	for _, part := range parts {
		report, err := s.resolvePart(ctx, env, clientID, part)
		if err != nil && report == nil {
			return nil, err
		}
		if report.Summary != nil {
			summaries = append(summaries, report.Summary)
		}
		if !report.Success {
			degraded = true
			continue
		}
		source = strongerSource(source, report.SourceUsed)
	}

	merged := reconcile.Merge(summaries)
	report := successReport(merged, source, "range", degraded)
	if source == metrics.SourceNone {
		report.Success = false
		report.Failure = metrics.ErrNoData.Error()
	}
	return report, nil
}

// resolvePart resolves one month-bounded sub-range without re-coalescing.
func (s *ResolverService) resolvePart(ctx context.Context, env ResolveEnv, clientID string, part periods.DateRange) (*metrics.ResolvedReport, error) {
	key, classification, aligned := periods.KeyFor(clientID, env.Platform, s.now(), part)
	if aligned {
		if classification.IsCurrent {
			return s.resolveCurrent(ctx, env, clientID, key, part)
		}
		return s.resolveHistorical(ctx, env, clientID, key, part)
	}

	// A partial month: the day ledger is the only durable tier keyed finely
	// enough, with a live fetch as backfill.
	rows, err := env.Ledger.GetRange(clientID, env.Platform, part)
	if err != nil && s.logger != nil {
		s.logger.LogError(logging.ChannelLedger, "partial range ledger read", err, env.TenantID)
	}
	if len(rows) > 0 {
		return successReport(reconcile.FromLedger(rows), metrics.SourceDayLedger, "range", false), nil
	}

	payload, err := s.fetchUpstream(ctx, env, clientID, part)
	if err != nil {
		return failureReport("range", err), nil
	}
	return successReport(reconcile.FromUpstream(payload), metrics.SourceLiveFetch, "range", false), nil
}

// ForceRefresh bypasses the hot cache read and always performs a live fetch
// plus write-through. Operator-facing; falls back to stale data on failure.
func (s *ResolverService) ForceRefresh(ctx context.Context, env ResolveEnv, clientID string, r periods.DateRange) (*metrics.ResolvedReport, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid date range %s: %w", r.String(), metrics.ErrAmbiguousRange)
	}

	key, classification, aligned := periods.KeyFor(clientID, env.Platform, s.now(), r)

	payload, err := s.fetchUpstream(ctx, env, clientID, r)
	if err != nil {
		if aligned && classification.IsCurrent {
			if entry, found := env.Cache.GetHotPeriod(env.TenantID, key); found {
				report := successReport(entry.Summary, metrics.SourceHotCacheStale, key.PeriodType, true)
				report.Failure = err.Error()
				return report, nil
			}
		}
		return failureReport(periodTypeLabel(aligned, key), err), err
	}

	summary := reconcile.FromUpstream(payload)
	if aligned {
		if classification.IsCurrent {
			env.Cache.SetHotPeriod(env.TenantID, key, summary)
		} else if summary.HasSignal() {
			if archiveErr := env.Archive.Upsert(key, summary); archiveErr != nil && s.logger != nil {
				s.logger.LogError(logging.ChannelArchive, "force refresh archive write", archiveErr, env.TenantID)
			}
		}
	}
	return successReport(summary, metrics.SourceLiveFetch, periodTypeLabel(aligned, key), false), nil
}

// fetchUpstream performs one live platform call under the hard timeout and
// writes the per-day breakdown through to the ledger.
func (s *ResolverService) fetchUpstream(ctx context.Context, env ResolveEnv, clientID string, r periods.DateRange) (*metrics.RangePayload, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, config.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	payload, err := env.Adapter.FetchRange(fetchCtx, clientID, r.Start, r.End)
	monitoring.RecordUpstreamFetch(string(env.Platform), fetchResult(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	for _, day := range payload.Days {
		if upsertErr := env.Ledger.UpsertDay(day); upsertErr != nil {
			// Ledger write-through is best effort on the read path.
			if s.logger != nil {
				s.logger.LogError(logging.ChannelLedger, "day ledger write-through", upsertErr, env.TenantID)
			}
			break
		}
	}
	return payload, nil
}

// triggerBackgroundRefresh starts a detached refresh for a stale key unless
// one ran recently.
func (s *ResolverService) triggerBackgroundRefresh(env ResolveEnv, clientID string, key periods.PeriodKey, r periods.DateRange) {
	if !s.cooldown.TryAcquire(key.CacheKey()) {
		monitoring.RecordBackgroundRefresh("cooldown")
		return
	}

	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), config.UpstreamTimeout)
		defer cancel()

		payload, err := s.fetchUpstream(refreshCtx, env, clientID, r)
		if err != nil {
			monitoring.RecordBackgroundRefresh("failed")
			if s.logger != nil {
				s.logger.LogError(logging.ChannelCache, "background refresh", err, env.TenantID)
			}
			return
		}

		env.Cache.SetHotPeriod(env.TenantID, key, reconcile.FromUpstream(payload))
		monitoring.RecordBackgroundRefresh("success")
	}()
}

func successReport(summary *metrics.PeriodSummary, source metrics.Source, periodType periods.PeriodType, degraded bool) *metrics.ResolvedReport {
	return &metrics.ResolvedReport{
		Success:    true,
		Summary:    summary,
		SourceUsed: source,
		PeriodType: string(periodType),
		Degraded:   degraded,
	}
}

func failureReport(periodType periods.PeriodType, err error) *metrics.ResolvedReport {
	return &metrics.ResolvedReport{
		Success:    false,
		Summary:    metrics.EmptySummary(),
		SourceUsed: metrics.SourceNone,
		PeriodType: string(periodType),
		Degraded:   true,
		Failure:    err.Error(),
	}
}

func periodTypeLabel(aligned bool, key periods.PeriodKey) periods.PeriodType {
	if aligned {
		return key.PeriodType
	}
	return "range"
}

// strongerSource picks the label that best describes a merged result. Live
// fetches dominate because they mean at least one piece left the process.
func strongerSource(a, b metrics.Source) metrics.Source {
	rank := func(s metrics.Source) int {
		switch s {
		case metrics.SourceLiveFetch:
			return 5
		case metrics.SourceDayLedger:
			return 4
		case metrics.SourceArchive:
			return 3
		case metrics.SourceHotCacheStale:
			return 2
		case metrics.SourceHotCacheFresh:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func fetchResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, metrics.ErrUpstreamAuthInvalid):
		return "auth_invalid"
	default:
		return "unavailable"
	}
}
