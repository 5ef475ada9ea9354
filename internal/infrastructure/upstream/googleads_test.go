package upstream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapGoogleCategory(t *testing.T) {
	cases := []struct {
		category string
		check    func(t *testing.T, f metrics.FunnelMetrics)
	}{
		{"CONTACT", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.Contact) }},
		{"SUBMIT_LEAD_FORM", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.Contact) }},
		{"PHONE_CALL_LEAD", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.Contact) }},
		{"BEGIN_CHECKOUT", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.BookingStep1) }},
		{"ADD_PAYMENT_INFO", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.BookingStep2) }},
		{"SIGNUP", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.BookingStep3) }},
		{"PURCHASE", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.Reservations) }},
		{"BOOK_APPOINTMENT", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, int64(3), f.Reservations) }},
		{"DOWNLOAD", func(t *testing.T, f metrics.FunnelMetrics) { assert.Equal(t, metrics.FunnelMetrics{}, f) }},
	}

	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			tc.check(t, mapGoogleCategory(tc.category, 3))
		})
	}
}

func googleRow(campaignID, name, date string, costMicros, impressions, clicks int64, conversions float64, value float64, category string) googleAdsRow {
	var row googleAdsRow
	row.Campaign.ID = json.Number(campaignID)
	row.Campaign.Name = name
	row.Campaign.Status = "ENABLED"
	row.Metrics.CostMicros = json.Number(jsonInt(costMicros))
	row.Metrics.Impressions = json.Number(jsonInt(impressions))
	row.Metrics.Clicks = json.Number(jsonInt(clicks))
	row.Metrics.Conversions = json.Number(jsonFloat(conversions))
	row.Metrics.ConversionsValue = json.Number(jsonFloat(value))
	row.Segments.Date = date
	row.Segments.ConversionActionCategory = category
	return row
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestFoldGoogleRows(t *testing.T) {
	baseRows := []googleAdsRow{
		googleRow("100", "Brand", "2024-03-01", 50_000_000, 1000, 40, 2, 800, ""),
		googleRow("100", "Brand", "2024-03-02", 50_000_000, 1000, 60, 1, 400, ""),
	}
	funnelRows := []googleAdsRow{
		googleRow("100", "Brand", "2024-03-01", 0, 0, 0, 2, 0, "PURCHASE"),
		googleRow("100", "Brand", "2024-03-02", 0, 0, 0, 5, 0, "BEGIN_CHECKOUT"),
	}

	payload := foldGoogleRows("client-1", baseRows, funnelRows)

	require.Len(t, payload.Campaigns, 1)
	brand := payload.Campaigns[0]
	assert.InDelta(t, 100.0, brand.Stats.Spend, 1e-9, "cost micros convert to currency units")
	assert.Equal(t, int64(2000), brand.Stats.Impressions)
	assert.Equal(t, int64(100), brand.Stats.Clicks)
	assert.Equal(t, int64(2), brand.Funnel.Reservations)
	assert.Equal(t, int64(5), brand.Funnel.BookingStep1)
	assert.InDelta(t, 1200.0, brand.Funnel.ReservationValue, 1e-9)

	require.Len(t, payload.Days, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), payload.Days[0].Date)
	assert.Equal(t, metrics.PlatformGoogleAds, payload.Days[0].Platform)
	assert.InDelta(t, 50.0, payload.Days[0].Stats.Spend, 1e-9)
	assert.Equal(t, int64(2), payload.Days[0].Funnel.Reservations)
}

func TestRegistryDispatch(t *testing.T) {
	meta := NewMetaAdapter("token", map[string]string{}, nil)
	registry := NewRegistry(meta)

	adapter, err := registry.For(metrics.PlatformMeta)
	require.NoError(t, err)
	assert.Equal(t, metrics.PlatformMeta, adapter.Platform())

	_, err = registry.For(metrics.PlatformGoogleAds)
	assert.Error(t, err)

	platforms := registry.Platforms()
	assert.Equal(t, []metrics.Platform{metrics.PlatformMeta}, platforms)
}
