package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archivalRig struct {
	service *ArchivalService
	env     ArchiveEnv
	archive *fakeArchive
	cache   *manager.Manager
}

func newArchivalRig(now time.Time) *archivalRig {
	archive := newFakeArchive()
	cache := manager.NewManager(nil)
	cache.InitializeTenant("t1")

	service := NewArchivalService(nil)
	service.SetClock(func() time.Time { return now })

	return &archivalRig{
		service: service,
		env: ArchiveEnv{
			TenantID: "t1",
			Archive:  archive,
			Cache:    cache,
		},
		archive: archive,
		cache:   cache,
	}
}

func periodKey(periodType periods.PeriodType, periodID string) periods.PeriodKey {
	return periods.PeriodKey{
		ClientID:   "client-1",
		Platform:   metrics.PlatformMeta,
		PeriodType: periodType,
		PeriodID:   periodID,
	}
}

func TestMonthlyArchivalMigratesClosedMonths(t *testing.T) {
	rig := newArchivalRig(utcDay(2024, 3, 15))

	closedKey := periodKey(periods.PeriodMonth, "2024-02")
	currentKey := periodKey(periods.PeriodMonth, "2024-03")
	rig.cache.SetHotPeriod("t1", closedKey, &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 100}})
	rig.cache.SetHotPeriod("t1", currentKey, &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 50}})

	archived, err := rig.service.RunMonthlyArchival(rig.env)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	entry, err := rig.archive.Get(closedKey)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.InDelta(t, 100.0, entry.Summary.Stats.Spend, 1e-9)

	_, found := rig.cache.GetHotPeriod("t1", closedKey)
	assert.False(t, found, "the hot entry is removed after the archive write")
	_, found = rig.cache.GetHotPeriod("t1", currentKey)
	assert.True(t, found, "the open month stays hot")
}

func TestMonthlyArchivalIsIdempotent(t *testing.T) {
	rig := newArchivalRig(utcDay(2024, 3, 15))

	closedKey := periodKey(periods.PeriodMonth, "2024-02")
	rig.cache.SetHotPeriod("t1", closedKey, &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 100}})

	archived, err := rig.service.RunMonthlyArchival(rig.env)
	require.NoError(t, err)
	require.Equal(t, 1, archived)

	archived, err = rig.service.RunMonthlyArchival(rig.env)
	require.NoError(t, err)
	assert.Zero(t, archived, "a second run finds nothing to migrate")
	assert.Len(t, rig.archive.entries, 1)
}

func TestArchivalKeepsHotEntryWhenWriteFails(t *testing.T) {
	rig := newArchivalRig(utcDay(2024, 3, 15))
	rig.archive.upsertErr = metrics.ErrStoreUnavailable

	closedKey := periodKey(periods.PeriodMonth, "2024-02")
	rig.cache.SetHotPeriod("t1", closedKey, &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 100}})

	archived, err := rig.service.RunMonthlyArchival(rig.env)
	assert.ErrorIs(t, err, metrics.ErrStoreUnavailable)
	assert.Zero(t, archived)

	_, found := rig.cache.GetHotPeriod("t1", closedKey)
	assert.True(t, found, "the hot entry stays authoritative until the archive holds the data")
}

func TestWeeklyArchivalSweepsWeeksAndDays(t *testing.T) {
	rig := newArchivalRig(utcDay(2024, 3, 15)) // Friday of 2024-W11

	closedWeek := periodKey(periods.PeriodWeek, "2024-W10")
	currentWeek := periodKey(periods.PeriodWeek, "2024-W11")
	closedDay := periodKey(periods.PeriodDay, "2024-03-10")
	rig.cache.SetHotPeriod("t1", closedWeek, metrics.EmptySummary())
	rig.cache.SetHotPeriod("t1", currentWeek, metrics.EmptySummary())
	rig.cache.SetHotPeriod("t1", closedDay, metrics.EmptySummary())

	archived, err := rig.service.RunWeeklyArchival(rig.env)
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	_, found := rig.cache.GetHotPeriod("t1", currentWeek)
	assert.True(t, found)
	_, found = rig.cache.GetHotPeriod("t1", closedWeek)
	assert.False(t, found)
	_, found = rig.cache.GetHotPeriod("t1", closedDay)
	assert.False(t, found)
}

func TestPruneRetentionClampsToFloor(t *testing.T) {
	rig := newArchivalRig(utcDay(2025, 6, 15))

	// 2024-04 is outside even the clamped 13-month horizon; 2024-06 is inside.
	require.NoError(t, rig.archive.Upsert(periodKey(periods.PeriodMonth, "2024-04"), metrics.EmptySummary()))
	require.NoError(t, rig.archive.Upsert(periodKey(periods.PeriodMonth, "2024-06"), metrics.EmptySummary()))

	// A one-month horizon must be clamped, not honored.
	pruned, err := rig.service.PruneRetention(rig.env, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	entry, err := rig.archive.Get(periodKey(periods.PeriodMonth, "2024-06"))
	require.NoError(t, err)
	assert.NotNil(t, entry, "rows inside the year-over-year window survive")

	entry, err = rig.archive.Get(periodKey(periods.PeriodMonth, "2024-04"))
	require.NoError(t, err)
	assert.Nil(t, entry)
}
