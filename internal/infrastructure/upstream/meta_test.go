package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMetaActions(t *testing.T) {
	funnel := mapMetaActions(
		[]metaAction{
			{ActionType: "lead", Value: "3"},
			{ActionType: "contact", Value: "2"},
			{ActionType: "initiate_checkout", Value: "8"},
			{ActionType: "add_payment_info", Value: "5"},
			{ActionType: "complete_registration", Value: "4"},
			{ActionType: "purchase", Value: "6"},
			{ActionType: "link_click", Value: "99"}, // unmapped types are dropped
		},
		[]metaAction{
			{ActionType: "purchase", Value: "1200.50"},
			{ActionType: "lead", Value: "77"}, // only purchase values carry revenue
		},
	)

	assert.Equal(t, int64(5), funnel.Contact)
	assert.Equal(t, int64(8), funnel.BookingStep1)
	assert.Equal(t, int64(5), funnel.BookingStep2)
	assert.Equal(t, int64(4), funnel.BookingStep3)
	assert.Equal(t, int64(6), funnel.Reservations)
	assert.InDelta(t, 1200.50, funnel.ReservationValue, 1e-9)
}

func TestFoldMetaRows(t *testing.T) {
	rows := []metaInsightRow{
		{
			CampaignID: "100", CampaignName: "Brand",
			Spend: "50.25", Impressions: "1000", Clicks: "40",
			Actions:   []metaAction{{ActionType: "purchase", Value: "2"}},
			DateStart: "2024-03-01",
		},
		{
			CampaignID: "100", CampaignName: "Brand",
			Spend: "49.75", Impressions: "1000", Clicks: "60",
			DateStart: "2024-03-02",
		},
		{
			CampaignID: "200", CampaignName: "Search",
			Spend: "10", Impressions: "500", Clicks: "10",
			DateStart: "2024-03-01",
		},
	}

	payload := foldMetaRows("client-1", rows)

	require.Len(t, payload.Campaigns, 2)
	brand := payload.Campaigns[0]
	assert.Equal(t, "100", brand.ID)
	assert.InDelta(t, 100.0, brand.Stats.Spend, 1e-9)
	assert.Equal(t, int64(2000), brand.Stats.Impressions)
	assert.Equal(t, int64(100), brand.Stats.Clicks)
	assert.Equal(t, int64(2), brand.Funnel.Reservations)
	assert.Equal(t, int64(2), brand.Stats.Conversions, "conversions mirror reservations")

	require.Len(t, payload.Days, 2)
	day1 := payload.Days[0]
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day1.Date)
	assert.Equal(t, metrics.PlatformMeta, day1.Platform)
	assert.InDelta(t, 60.25, day1.Stats.Spend, 1e-9, "two campaigns fold into one day row")
}

func TestMetaFetchRangePaginates(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		resp := metaInsightsResponse{
			Data: []metaInsightRow{{
				CampaignID: "100", CampaignName: "Brand",
				Spend: "10", Impressions: "100", Clicks: "5",
				DateStart: "2024-03-01",
			}},
		}
		if pages == 1 {
			resp.Paging.Next = "http://" + r.Host + "/page2"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	adapter := NewMetaAdapter("token", map[string]string{"client-1": "123"}, nil)
	adapter.baseURL = srv.URL

	payload, err := adapter.FetchRange(context.Background(),
		"client-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, payload.Campaigns, 1)
	assert.InDelta(t, 20.0, payload.Campaigns[0].Stats.Spend, 1e-9)
}

func TestMetaFetchRangeAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := NewMetaAdapter("expired", map[string]string{"client-1": "123"}, nil)
	adapter.baseURL = srv.URL

	_, err := adapter.FetchRange(context.Background(),
		"client-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, metrics.ErrUpstreamAuthInvalid)
}

func TestMetaFetchRangeUnknownClient(t *testing.T) {
	adapter := NewMetaAdapter("token", map[string]string{}, nil)

	_, err := adapter.FetchRange(context.Background(),
		"nobody", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, metrics.ErrUpstreamAuthInvalid)
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, classifyStatus(metrics.PlatformMeta, http.StatusUnauthorized), metrics.ErrUpstreamAuthInvalid)
	assert.ErrorIs(t, classifyStatus(metrics.PlatformMeta, http.StatusForbidden), metrics.ErrUpstreamAuthInvalid)
	assert.ErrorIs(t, classifyStatus(metrics.PlatformMeta, http.StatusTooManyRequests), metrics.ErrUpstreamUnavailable)
	assert.ErrorIs(t, classifyStatus(metrics.PlatformMeta, http.StatusInternalServerError), metrics.ErrUpstreamUnavailable)
	assert.ErrorIs(t, classifyStatus(metrics.PlatformMeta, http.StatusNotFound), metrics.ErrUpstreamUnavailable)
}
