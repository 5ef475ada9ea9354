package reconcile

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dayRow(date time.Time, spend float64, clicks, reservations int64) metrics.DayMetricRecord {
	return metrics.DayMetricRecord{
		ClientID: "client-1",
		Platform: metrics.PlatformMeta,
		Date:     date,
		Stats:    metrics.PeriodStats{Spend: spend, Clicks: clicks},
		Funnel:   metrics.FunnelMetrics{Reservations: reservations},
	}
}

func TestDerive(t *testing.T) {
	stats := metrics.PeriodStats{Spend: 100, Impressions: 10000, Clicks: 200, CTR: 99, CPC: 99}
	funnel := metrics.FunnelMetrics{Reservations: 25, ReservationValue: 400, ROAS: 99, CostPerConv: 99}

	Derive(&stats, &funnel)

	assert.InDelta(t, 2.0, stats.CTR, 1e-9)
	assert.InDelta(t, 0.5, stats.CPC, 1e-9)
	assert.InDelta(t, 4.0, funnel.ROAS, 1e-9)
	assert.InDelta(t, 4.0, funnel.CostPerConv, 1e-9)
}

func TestDeriveZeroGuards(t *testing.T) {
	stats := metrics.PeriodStats{CTR: 99, CPC: 99}
	funnel := metrics.FunnelMetrics{ROAS: 99, CostPerConv: 99}

	Derive(&stats, &funnel)

	assert.Zero(t, stats.CTR)
	assert.Zero(t, stats.CPC)
	assert.Zero(t, funnel.ROAS)
	assert.Zero(t, funnel.CostPerConv)
}

func TestReconcileSummaryBeatsLedger(t *testing.T) {
	// A period summary claiming 10 reservations and ledger rows summing to 6
	// must yield 10, never 16: sources are exclusive, not additive.
	summary := &metrics.PeriodSummary{
		Stats:  metrics.PeriodStats{Spend: 500, Impressions: 10000, Clicks: 200},
		Funnel: metrics.FunnelMetrics{Reservations: 10, ReservationValue: 2000},
	}
	rows := []metrics.DayMetricRecord{
		dayRow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 3),
		dayRow(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 100, 40, 3),
	}

	out := Reconcile(Sources{Summary: summary, DayRows: rows})

	assert.Equal(t, int64(10), out.Funnel.Reservations)
	assert.InDelta(t, 500.0, out.Stats.Spend, 1e-9)
	assert.InDelta(t, 2.0, out.Stats.CTR, 1e-9)
	assert.InDelta(t, 2.5, out.Stats.CPC, 1e-9)
	assert.InDelta(t, 4.0, out.Funnel.ROAS, 1e-9)
}

func TestReconcileFamiliesSelectIndependently(t *testing.T) {
	// Summary carries funnel signal only; stats fall through to the ledger.
	summary := &metrics.PeriodSummary{
		Funnel: metrics.FunnelMetrics{Reservations: 7},
	}
	rows := []metrics.DayMetricRecord{
		dayRow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 80, 20, 0),
	}

	out := Reconcile(Sources{Summary: summary, DayRows: rows})

	assert.InDelta(t, 80.0, out.Stats.Spend, 1e-9)
	assert.Equal(t, int64(20), out.Stats.Clicks)
	assert.Equal(t, int64(7), out.Funnel.Reservations)
}

func TestReconcileFallsThroughToUpstream(t *testing.T) {
	payload := &metrics.RangePayload{
		Campaigns: []metrics.NormalizedCampaign{
			{ID: "c1", Stats: metrics.PeriodStats{Spend: 60, Clicks: 30}, Funnel: metrics.FunnelMetrics{Contact: 4}},
		},
	}

	out := Reconcile(Sources{Upstream: payload})

	assert.InDelta(t, 60.0, out.Stats.Spend, 1e-9)
	assert.Equal(t, int64(4), out.Funnel.Contact)
	require.Len(t, out.Campaigns, 1)
}

func TestFromLedger(t *testing.T) {
	rows := []metrics.DayMetricRecord{
		dayRow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 100, 25, 2),
		dayRow(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 0, 0, 0),
	}

	out := FromLedger(rows)

	assert.InDelta(t, 100.0, out.Stats.Spend, 1e-9)
	assert.Equal(t, int64(25), out.Stats.Clicks)
	assert.InDelta(t, 4.0, out.Stats.CPC, 1e-9)
	assert.Equal(t, int64(2), out.Funnel.Reservations)
	assert.NotNil(t, out.Campaigns)
	assert.Empty(t, out.Campaigns)
}

func TestMergeFoldsCampaignsByID(t *testing.T) {
	a := &metrics.PeriodSummary{
		Stats: metrics.PeriodStats{Spend: 100, Impressions: 5000, Clicks: 100},
		Campaigns: []metrics.NormalizedCampaign{
			{ID: "c1", Name: "Brand", Stats: metrics.PeriodStats{Spend: 100, Clicks: 100}},
		},
	}
	b := &metrics.PeriodSummary{
		Stats: metrics.PeriodStats{Spend: 400, Impressions: 5000, Clicks: 100},
		Campaigns: []metrics.NormalizedCampaign{
			{ID: "c1", Name: "Brand", Stats: metrics.PeriodStats{Spend: 400, Clicks: 100}},
			{ID: "c2", Name: "Search", Stats: metrics.PeriodStats{Spend: 0, Clicks: 0}},
		},
	}

	out := Merge([]*metrics.PeriodSummary{a, nil, b})

	assert.InDelta(t, 500.0, out.Stats.Spend, 1e-9)
	assert.Equal(t, int64(200), out.Stats.Clicks)
	assert.InDelta(t, 2.5, out.Stats.CPC, 1e-9)
	assert.InDelta(t, 2.0, out.Stats.CTR, 1e-9)

	require.Len(t, out.Campaigns, 2)
	assert.Equal(t, "c1", out.Campaigns[0].ID)
	assert.InDelta(t, 500.0, out.Campaigns[0].Stats.Spend, 1e-9)
	assert.InDelta(t, 2.5, out.Campaigns[0].Stats.CPC, 1e-9)
}

func TestHasSignal(t *testing.T) {
	assert.False(t, metrics.EmptySummary().HasSignal())
	assert.True(t, (&metrics.PeriodSummary{Stats: metrics.PeriodStats{Impressions: 1}}).HasSignal())
	assert.True(t, (&metrics.PeriodSummary{Funnel: metrics.FunnelMetrics{Contact: 1}}).HasSignal())
	var nilSummary *metrics.PeriodSummary
	assert.False(t, nilSummary.HasSignal())
}
