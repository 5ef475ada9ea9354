package stores

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthKey(clientID, periodID string) periods.PeriodKey {
	return periods.PeriodKey{
		ClientID:   clientID,
		Platform:   metrics.PlatformMeta,
		PeriodType: periods.PeriodMonth,
		PeriodID:   periodID,
	}
}

func TestHotPeriodStoreSetGetDelete(t *testing.T) {
	hs := NewHotPeriodStore()
	key := monthKey("client-1", "2024-03")
	summary := &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 42}}

	_, found := hs.Get("t1", key)
	assert.False(t, found)

	hs.Set("t1", key, summary)

	entry, found := hs.Get("t1", key)
	require.True(t, found)
	assert.Same(t, summary, entry.Summary)
	assert.True(t, entry.IsFresh(config.HotCacheTTL))
	assert.Equal(t, key, entry.Key)

	// Refresh lands in place under the same key.
	replacement := &metrics.PeriodSummary{Stats: metrics.PeriodStats{Spend: 43}}
	hs.Set("t1", key, replacement)
	assert.Len(t, hs.Keys("t1"), 1)

	hs.Delete("t1", key)
	_, found = hs.Get("t1", key)
	assert.False(t, found)
}

func TestHotPeriodStoreTenantIsolation(t *testing.T) {
	hs := NewHotPeriodStore()
	key := monthKey("client-1", "2024-03")

	hs.Set("t1", key, metrics.EmptySummary())

	_, found := hs.Get("t2", key)
	assert.False(t, found)
	assert.Empty(t, hs.Keys("t2"))
}

func TestHotPeriodStoreStalenessIsAgeBased(t *testing.T) {
	hs := NewHotPeriodStore()
	key := monthKey("client-1", "2024-03")
	hs.Set("t1", key, metrics.EmptySummary())

	entry, found := hs.Get("t1", key)
	require.True(t, found)
	entry.LastRefreshedAt = time.Now().UTC().Add(-config.HotCacheTTL - time.Hour)

	stale, found := hs.Get("t1", key)
	require.True(t, found, "a stale entry is still served")
	assert.False(t, stale.IsFresh(config.HotCacheTTL))

	summary := hs.Summary("t1")
	assert.Equal(t, 1, summary["hotPeriods"])
	assert.Equal(t, 1, summary["staleCount"])
}

func TestHotPeriodStorePurgeExpired(t *testing.T) {
	hs := NewHotPeriodStore()
	oldKey := monthKey("client-1", "2024-01")
	freshKey := monthKey("client-1", "2024-03")

	hs.Set("t1", oldKey, metrics.EmptySummary())
	hs.Set("t1", freshKey, metrics.EmptySummary())

	entry, found := hs.Get("t1", oldKey)
	require.True(t, found)
	entry.LastRefreshedAt = time.Now().UTC().Add(-config.HotCacheTTL*6 - time.Hour)

	assert.Equal(t, 1, hs.PurgeExpired("t1"))

	_, found = hs.Get("t1", oldKey)
	assert.False(t, found)
	_, found = hs.Get("t1", freshKey)
	assert.True(t, found)
}

func TestHotPeriodStoreSummaryUnknownTenant(t *testing.T) {
	hs := NewHotPeriodStore()
	summary := hs.Summary("nobody")
	assert.Equal(t, false, summary["exists"])
}
