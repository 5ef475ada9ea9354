package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
)

const metaGraphBase = "https://graph.facebook.com/v19.0"

// MetaAdapter fetches campaign insights from the Meta Marketing API.
type MetaAdapter struct {
	accessToken string
	accountIDs  map[string]string // clientID -> ad account ID
	client      *http.Client
	logger      *logging.ChanneledLogger
	baseURL     string
}

// NewMetaAdapter creates a Meta adapter for one tenant's credential set.
func NewMetaAdapter(accessToken string, accountIDs map[string]string, logger *logging.ChanneledLogger) *MetaAdapter {
	return &MetaAdapter{
		accessToken: accessToken,
		accountIDs:  accountIDs,
		client:      newHTTPClient(),
		logger:      logger,
		baseURL:     metaGraphBase,
	}
}

func (a *MetaAdapter) Platform() metrics.Platform {
	return metrics.PlatformMeta
}

// metaAction is one entry of the insights "actions"/"action_values" lists.
type metaAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// metaInsightRow is one campaign-by-day insights row.
type metaInsightRow struct {
	CampaignID   string       `json:"campaign_id"`
	CampaignName string       `json:"campaign_name"`
	Spend        string       `json:"spend"`
	Impressions  string       `json:"impressions"`
	Clicks       string       `json:"clicks"`
	Actions      []metaAction `json:"actions"`
	ActionValues []metaAction `json:"action_values"`
	DateStart    string       `json:"date_start"`
}

type metaInsightsResponse struct {
	Data   []metaInsightRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchRange pulls campaign insights with a daily breakdown, then folds them
// into normalized campaigns plus day rows for the ledger write-through.
func (a *MetaAdapter) FetchRange(ctx context.Context, clientID string, start, end time.Time) (*metrics.RangePayload, error) {
	accountID, ok := a.accountIDs[clientID]
	if !ok || accountID == "" {
		return nil, fmt.Errorf("no Meta ad account configured for client %s: %w", clientID, metrics.ErrUpstreamAuthInvalid)
	}

	fetchStart := time.Now()
	if a.logger != nil {
		a.logger.Upstream().Debug("Fetching Meta insights",
			"clientId", clientID,
			"accountId", accountID,
			"start", periods.DayID(start),
			"end", periods.DayID(end))
	}

	params := url.Values{}
	params.Set("access_token", a.accessToken)
	params.Set("level", "campaign")
	params.Set("time_increment", "1")
	params.Set("fields", "campaign_id,campaign_name,spend,impressions,clicks,actions,action_values")
	params.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`, periods.DayID(start), periods.DayID(end)))
	params.Set("limit", "500")

	nextURL := fmt.Sprintf("%s/act_%s/insights?%s", a.baseURL, accountID, params.Encode())

	var rows []metaInsightRow
	for nextURL != "" {
		pageURL := nextURL
		resp, err := doWithRetry(ctx, a.client, func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, pageURL, nil)
		}, metrics.PlatformMeta, a.logger)
		if err != nil {
			return nil, err
		}

		var page metaInsightsResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&page); decodeErr != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to decode Meta insights: %v: %w", decodeErr, metrics.ErrUpstreamUnavailable)
		}
		resp.Body.Close()

		rows = append(rows, page.Data...)
		nextURL = page.Paging.Next
	}

	payload := foldMetaRows(clientID, rows)
	if a.logger != nil {
		a.logger.Upstream().Info("Meta insights fetched",
			"clientId", clientID,
			"campaigns", len(payload.Campaigns),
			"days", len(payload.Days),
			"duration", time.Since(fetchStart))
	}
	return payload, nil
}

// foldMetaRows turns campaign-by-day rows into per-campaign totals plus
// per-day ledger rows.
func foldMetaRows(clientID string, rows []metaInsightRow) *metrics.RangePayload {
	campaignTotals := make(map[string]*metrics.NormalizedCampaign)
	var campaignOrder []string
	dayTotals := make(map[string]*metrics.DayMetricRecord)
	var dayOrder []string

	for _, row := range rows {
		stats := metrics.PeriodStats{
			Spend:       parseMetaFloat(row.Spend),
			Impressions: parseMetaInt(row.Impressions),
			Clicks:      parseMetaInt(row.Clicks),
		}
		funnel := mapMetaActions(row.Actions, row.ActionValues)
		stats.Conversions = funnel.Reservations

		campaign, exists := campaignTotals[row.CampaignID]
		if !exists {
			campaign = &metrics.NormalizedCampaign{
				ID:     row.CampaignID,
				Name:   row.CampaignName,
				Status: "ACTIVE",
			}
			campaignTotals[row.CampaignID] = campaign
			campaignOrder = append(campaignOrder, row.CampaignID)
		}
		addStats(&campaign.Stats, stats)
		addFunnel(&campaign.Funnel, funnel)

		day, exists := dayTotals[row.DateStart]
		if !exists {
			date, err := time.ParseInLocation("2006-01-02", row.DateStart, time.UTC)
			if err != nil {
				continue
			}
			day = &metrics.DayMetricRecord{
				ClientID: clientID,
				Platform: metrics.PlatformMeta,
				Date:     date,
			}
			dayTotals[row.DateStart] = day
			dayOrder = append(dayOrder, row.DateStart)
		}
		addStats(&day.Stats, stats)
		addFunnel(&day.Funnel, funnel)
	}

	payload := &metrics.RangePayload{
		Campaigns: make([]metrics.NormalizedCampaign, 0, len(campaignOrder)),
		Days:      make([]metrics.DayMetricRecord, 0, len(dayOrder)),
	}
	for _, id := range campaignOrder {
		payload.Campaigns = append(payload.Campaigns, *campaignTotals[id])
	}
	for _, dateStr := range dayOrder {
		payload.Days = append(payload.Days, *dayTotals[dateStr])
	}
	return payload
}

// mapMetaActions translates Meta action types into the canonical funnel.
func mapMetaActions(actions, actionValues []metaAction) metrics.FunnelMetrics {
	var funnel metrics.FunnelMetrics
	for _, action := range actions {
		count := parseMetaInt(action.Value)
		switch action.ActionType {
		case "lead", "contact":
			funnel.Contact += count
		case "initiate_checkout", "omni_initiated_checkout":
			funnel.BookingStep1 += count
		case "add_payment_info":
			funnel.BookingStep2 += count
		case "complete_registration":
			funnel.BookingStep3 += count
		case "purchase", "omni_purchase":
			funnel.Reservations += count
		}
	}
	for _, value := range actionValues {
		switch value.ActionType {
		case "purchase", "omni_purchase":
			funnel.ReservationValue += parseMetaFloat(value.Value)
		}
	}
	return funnel
}

func addStats(dst *metrics.PeriodStats, src metrics.PeriodStats) {
	dst.Spend += src.Spend
	dst.Impressions += src.Impressions
	dst.Clicks += src.Clicks
	dst.Conversions += src.Conversions
}

func addFunnel(dst *metrics.FunnelMetrics, src metrics.FunnelMetrics) {
	dst.Contact += src.Contact
	dst.BookingStep1 += src.BookingStep1
	dst.BookingStep2 += src.BookingStep2
	dst.BookingStep3 += src.BookingStep3
	dst.Reservations += src.Reservations
	dst.ReservationValue += src.ReservationValue
}

func parseMetaFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseMetaInt(s string) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// Meta occasionally reports counts with a decimal component.
	return int64(parseMetaFloat(s))
}
