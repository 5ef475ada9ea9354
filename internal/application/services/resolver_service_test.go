package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/domain/repositories"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu       sync.Mutex
	rows     []metrics.DayMetricRecord
	upserts  []metrics.DayMetricRecord
	rangeErr error
}

func (f *fakeLedger) UpsertDay(row metrics.DayMetricRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, row)
	return nil
}

func (f *fakeLedger) GetRange(clientID string, platform metrics.Platform, r periods.DateRange) ([]metrics.DayMetricRecord, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []metrics.DayMetricRecord
	for _, row := range f.rows {
		if !row.Date.Before(r.Start) && !row.Date.After(r.End) {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeArchive struct {
	mu        sync.Mutex
	entries   map[string]*repositories.ArchiveEntry
	upserts   int
	getErr    error
	upsertErr error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{entries: make(map[string]*repositories.ArchiveEntry)}
}

func (f *fakeArchive) Get(key periods.PeriodKey) (*repositories.ArchiveEntry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[key.CacheKey()], nil
}

func (f *fakeArchive) Upsert(key periods.PeriodKey, summary *metrics.PeriodSummary) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.entries[key.CacheKey()] = &repositories.ArchiveEntry{
		Key:        key,
		Summary:    summary,
		ArchivedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeArchive) DeleteOlderThan(periodType periods.PeriodType, cutoffPeriodID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for cacheKey, entry := range f.entries {
		if entry.Key.PeriodType == periodType && entry.Key.PeriodID < cutoffPeriodID {
			delete(f.entries, cacheKey)
			deleted++
		}
	}
	return deleted, nil
}

type fakeAdapter struct {
	payload *metrics.RangePayload
	err     error
	delay   time.Duration
	calls   int32
}

func (f *fakeAdapter) Platform() metrics.Platform { return metrics.PlatformMeta }

func (f *fakeAdapter) FetchRange(ctx context.Context, clientID string, start, end time.Time) (*metrics.RangePayload, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeAdapter) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

type testRig struct {
	resolver *ResolverService
	cooldown *caching.RefreshCooldown
	env      ResolveEnv
	ledger   *fakeLedger
	archive  *fakeArchive
	adapter  *fakeAdapter
}

func newTestRig(now time.Time) *testRig {
	ledger := &fakeLedger{}
	archive := newFakeArchive()
	adapter := &fakeAdapter{payload: &metrics.RangePayload{Campaigns: []metrics.NormalizedCampaign{}}}
	cache := manager.NewManager(nil)
	cache.InitializeTenant("t1")

	cooldown := caching.NewRefreshCooldown(config.RefreshCooldown)
	resolver := NewResolverService(caching.NewRequestCoalescer(config.CoalesceCeiling), cooldown, nil)
	resolver.SetClock(func() time.Time { return now })

	return &testRig{
		resolver: resolver,
		cooldown: cooldown,
		env: ResolveEnv{
			TenantID: "t1",
			Platform: metrics.PlatformMeta,
			Ledger:   ledger,
			Archive:  archive,
			Adapter:  adapter,
			Cache:    cache,
		},
		ledger:  ledger,
		archive: archive,
		adapter: adapter,
	}
}

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func campaignPayload(spend float64, impressions, clicks, reservations int64, value float64) *metrics.RangePayload {
	return &metrics.RangePayload{
		Campaigns: []metrics.NormalizedCampaign{
			{
				ID:     "camp-1",
				Name:   "Always On",
				Stats:  metrics.PeriodStats{Spend: spend, Impressions: impressions, Clicks: clicks},
				Funnel: metrics.FunnelMetrics{Reservations: reservations, ReservationValue: value},
			},
		},
		Days: []metrics.DayMetricRecord{
			{
				ClientID: "client-1",
				Platform: metrics.PlatformMeta,
				Date:     utcDay(2024, 3, 1),
				Stats:    metrics.PeriodStats{Spend: spend, Impressions: impressions, Clicks: clicks},
				Funnel:   metrics.FunnelMetrics{Reservations: reservations, ReservationValue: value},
			},
		},
	}
}

func TestResolveCurrentMissFetchesThenServesFresh(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	rig.adapter.payload = campaignPayload(500, 10000, 200, 10, 2000)
	currentMonth := periods.NewDateRange(utcDay(2024, 3, 1), utcDay(2024, 3, 31))

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", currentMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceLiveFetch, report.SourceUsed)
	assert.True(t, report.Success)
	assert.InDelta(t, 2.0, report.Summary.Stats.CTR, 1e-9)
	assert.InDelta(t, 2.5, report.Summary.Stats.CPC, 1e-9)
	assert.InDelta(t, 4.0, report.Summary.Funnel.ROAS, 1e-9)
	assert.Equal(t, 1, rig.adapter.callCount())
	assert.Len(t, rig.ledger.upserts, 1, "per-day breakdown writes through to the ledger")

	report, err = rig.resolver.Resolve(context.Background(), rig.env, "client-1", currentMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceHotCacheFresh, report.SourceUsed)
	assert.Equal(t, 1, rig.adapter.callCount(), "a fresh hot entry answers without upstream")
}

func TestResolveCurrentStaleServedImmediately(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	currentMonth := periods.NewDateRange(utcDay(2024, 3, 1), utcDay(2024, 3, 31))

	key, _, ok := periods.KeyFor("client-1", metrics.PlatformMeta, utcDay(2024, 3, 15), currentMonth)
	require.True(t, ok)

	cached := &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 123}}
	rig.env.Cache.SetHotPeriod("t1", key, cached)

	entry, found := rig.env.Cache.GetHotPeriod("t1", key)
	require.True(t, found)
	entry.LastRefreshedAt = time.Now().UTC().Add(-config.HotCacheTTL - time.Hour)

	// A recent cooldown entry keeps the background refresh from firing, so the
	// adapter call count stays deterministic.
	require.True(t, rig.cooldown.TryAcquire(key.CacheKey()))

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", currentMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceHotCacheStale, report.SourceUsed)
	assert.InDelta(t, 123.0, report.Summary.Stats.Spend, 1e-9)
	assert.Equal(t, 0, rig.adapter.callCount())
}

func TestResolveHistoricalArchiveHit(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	closedMonth := periods.NewDateRange(utcDay(2024, 1, 1), utcDay(2024, 1, 31))

	key := periods.PeriodKey{ClientID: "client-1", Platform: metrics.PlatformMeta, PeriodType: periods.PeriodMonth, PeriodID: "2024-01"}
	require.NoError(t, rig.archive.Upsert(key, &metrics.PeriodSummary{
		Stats:  metrics.PeriodStats{Spend: 300, Impressions: 6000, Clicks: 120},
		Funnel: metrics.FunnelMetrics{Reservations: 5, ReservationValue: 900},
	}))

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", closedMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceArchive, report.SourceUsed)
	assert.InDelta(t, 3.0, report.Summary.Funnel.ROAS, 1e-9)
	assert.Equal(t, 0, rig.adapter.callCount(), "an archive hit never reaches upstream")
}

func TestResolveHistoricalLedgerFallback(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	closedMonth := periods.NewDateRange(utcDay(2024, 2, 1), utcDay(2024, 2, 29))

	rig.ledger.rows = []metrics.DayMetricRecord{
		{ClientID: "client-1", Platform: metrics.PlatformMeta, Date: utcDay(2024, 2, 10), Stats: metrics.PeriodStats{Spend: 100, Clicks: 25}},
		{ClientID: "client-1", Platform: metrics.PlatformMeta, Date: utcDay(2024, 2, 11), Stats: metrics.PeriodStats{Spend: 100, Clicks: 25}},
	}

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", closedMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceDayLedger, report.SourceUsed)
	assert.InDelta(t, 200.0, report.Summary.Stats.Spend, 1e-9)
	assert.InDelta(t, 4.0, report.Summary.Stats.CPC, 1e-9)
	assert.Equal(t, 0, rig.adapter.callCount())
}

func TestResolveHistoricalBackfillArchives(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	rig.adapter.payload = campaignPayload(250, 5000, 100, 4, 1000)
	closedMonth := periods.NewDateRange(utcDay(2024, 1, 1), utcDay(2024, 1, 31))

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", closedMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceLiveFetch, report.SourceUsed)
	assert.Equal(t, 1, rig.archive.upserts, "a successful backfill lands in the archive")
}

func TestResolveHistoricalAllTiersEmpty(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	rig.adapter.err = metrics.ErrUpstreamUnavailable
	closedMonth := periods.NewDateRange(utcDay(2024, 1, 1), utcDay(2024, 1, 31))

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", closedMonth)
	require.Error(t, err)
	assert.ErrorIs(t, err, metrics.ErrNoData)
	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Equal(t, metrics.SourceNone, report.SourceUsed)
	assert.Zero(t, rig.archive.upserts, "no fabricated zeros are archived")
}

func TestResolveCoalescesConcurrentCallers(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	rig.adapter.payload = campaignPayload(500, 10000, 200, 10, 2000)
	rig.adapter.delay = 30 * time.Millisecond
	currentMonth := periods.NewDateRange(utcDay(2024, 3, 1), utcDay(2024, 3, 31))

	const callers = 50
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1", currentMonth)
			assert.NoError(t, err)
			assert.True(t, report.Success)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rig.adapter.callCount(), "identical concurrent requests share one flight")
}

func TestResolveRejectsInvertedRange(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))

	_, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1",
		periods.DateRange{Start: utcDay(2024, 3, 10), End: utcDay(2024, 3, 1)})
	assert.ErrorIs(t, err, metrics.ErrAmbiguousRange)
}

func TestResolveSplitRangeSumsParts(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	rig.ledger.rows = []metrics.DayMetricRecord{
		{ClientID: "client-1", Platform: metrics.PlatformMeta, Date: utcDay(2024, 1, 20), Stats: metrics.PeriodStats{Spend: 100, Clicks: 50}},
		{ClientID: "client-1", Platform: metrics.PlatformMeta, Date: utcDay(2024, 2, 5), Stats: metrics.PeriodStats{Spend: 300, Clicks: 50}},
	}

	report, err := rig.resolver.Resolve(context.Background(), rig.env, "client-1",
		periods.NewDateRange(utcDay(2024, 1, 15), utcDay(2024, 2, 29)))
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, "range", report.PeriodType)
	assert.Equal(t, metrics.SourceDayLedger, report.SourceUsed)
	assert.InDelta(t, 400.0, report.Summary.Stats.Spend, 1e-9)
	assert.InDelta(t, 4.0, report.Summary.Stats.CPC, 1e-9)
}

func TestForceRefreshFallsBackToStaleOnFailure(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	currentMonth := periods.NewDateRange(utcDay(2024, 3, 1), utcDay(2024, 3, 31))

	key, _, ok := periods.KeyFor("client-1", metrics.PlatformMeta, utcDay(2024, 3, 15), currentMonth)
	require.True(t, ok)
	rig.env.Cache.SetHotPeriod("t1", key, &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 77}})

	rig.adapter.err = metrics.ErrUpstreamUnavailable

	report, err := rig.resolver.ForceRefresh(context.Background(), rig.env, "client-1", currentMonth)
	require.NoError(t, err, "stale data downgrades the failure")
	assert.Equal(t, metrics.SourceHotCacheStale, report.SourceUsed)
	assert.True(t, report.Degraded)
	assert.NotEmpty(t, report.Failure)
	assert.InDelta(t, 77.0, report.Summary.Stats.Spend, 1e-9)
}

func TestForceRefreshWritesThrough(t *testing.T) {
	rig := newTestRig(utcDay(2024, 3, 15))
	rig.adapter.payload = campaignPayload(500, 10000, 200, 10, 2000)
	currentMonth := periods.NewDateRange(utcDay(2024, 3, 1), utcDay(2024, 3, 31))

	report, err := rig.resolver.ForceRefresh(context.Background(), rig.env, "client-1", currentMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceLiveFetch, report.SourceUsed)

	key, _, ok := periods.KeyFor("client-1", metrics.PlatformMeta, utcDay(2024, 3, 15), currentMonth)
	require.True(t, ok)
	_, found := rig.env.Cache.GetHotPeriod("t1", key)
	assert.True(t, found, "a current-period force refresh lands in the hot cache")
}
