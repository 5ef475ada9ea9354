package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
)

const (
	googleAdsBase   = "https://googleads.googleapis.com/v16"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	microsPerUnit   = 1_000_000.0
	tokenSafetySkew = 60 * time.Second
)

// GoogleAdsCredentials holds the OAuth and developer credentials for one tenant.
type GoogleAdsCredentials struct {
	DeveloperToken string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
}

// GoogleAdsAdapter fetches campaign metrics through the Google Ads REST
// searchStream endpoint. Access tokens are minted lazily from the refresh
// token and reused until expiry.
type GoogleAdsAdapter struct {
	creds       GoogleAdsCredentials
	customerIDs map[string]string // clientID -> customer ID
	client      *http.Client
	logger      *logging.ChanneledLogger
	baseURL     string
	tokenURL    string

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGoogleAdsAdapter creates a Google Ads adapter for one tenant's credential set.
func NewGoogleAdsAdapter(creds GoogleAdsCredentials, customerIDs map[string]string, logger *logging.ChanneledLogger) *GoogleAdsAdapter {
	return &GoogleAdsAdapter{
		creds:       creds,
		customerIDs: customerIDs,
		client:      newHTTPClient(),
		logger:      logger,
		baseURL:     googleAdsBase,
		tokenURL:    googleTokenURL,
	}
}

func (a *GoogleAdsAdapter) Platform() metrics.Platform {
	return metrics.PlatformGoogleAds
}

// ensureAccessToken refreshes the OAuth access token when missing or near expiry.
func (a *GoogleAdsAdapter) ensureAccessToken(ctx context.Context) (string, error) {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry.Add(-tokenSafetySkew)) {
		return a.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", a.creds.ClientID)
	form.Set("client_secret", a.creds.ClientSecret)
	form.Set("refresh_token", a.creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("google token refresh failed: %v: %w", err, metrics.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(metrics.PlatformGoogleAds, resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %v: %w", err, metrics.ErrUpstreamUnavailable)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("google token refresh returned empty token: %w", metrics.ErrUpstreamAuthInvalid)
	}

	a.accessToken = token.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return a.accessToken, nil
}

// googleAdsRow is one searchStream result row.
type googleAdsRow struct {
	Campaign struct {
		ID     json.Number `json:"id"`
		Name   string      `json:"name"`
		Status string      `json:"status"`
	} `json:"campaign"`
	Metrics struct {
		CostMicros       json.Number `json:"costMicros"`
		Impressions      json.Number `json:"impressions"`
		Clicks           json.Number `json:"clicks"`
		Conversions      json.Number `json:"conversions"`
		ConversionsValue json.Number `json:"conversionsValue"`
	} `json:"metrics"`
	Segments struct {
		Date                     string `json:"date"`
		ConversionActionCategory string `json:"conversionActionCategory"`
	} `json:"segments"`
}

type googleAdsBatch struct {
	Results []googleAdsRow `json:"results"`
}

// FetchRange runs a campaign-by-day GAQL query plus a conversion-category
// breakdown, then folds both into the canonical payload.
func (a *GoogleAdsAdapter) FetchRange(ctx context.Context, clientID string, start, end time.Time) (*metrics.RangePayload, error) {
	customerID, ok := a.customerIDs[clientID]
	if !ok || customerID == "" {
		return nil, fmt.Errorf("no Google Ads customer configured for client %s: %w", clientID, metrics.ErrUpstreamAuthInvalid)
	}

	accessToken, err := a.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	fetchStart := time.Now()
	if a.logger != nil {
		a.logger.Upstream().Debug("Fetching Google Ads metrics",
			"clientId", clientID,
			"customerId", customerID,
			"start", periods.DayID(start),
			"end", periods.DayID(end))
	}

	baseQuery := fmt.Sprintf(
		`SELECT campaign.id, campaign.name, campaign.status, metrics.cost_micros, metrics.impressions, metrics.clicks, metrics.conversions, metrics.conversions_value, segments.date FROM campaign WHERE segments.date BETWEEN '%s' AND '%s'`,
		periods.DayID(start), periods.DayID(end))

	baseRows, err := a.searchStream(ctx, customerID, accessToken, baseQuery)
	if err != nil {
		return nil, err
	}

	funnelQuery := fmt.Sprintf(
		`SELECT campaign.id, metrics.conversions, segments.date, segments.conversion_action_category FROM campaign WHERE segments.date BETWEEN '%s' AND '%s'`,
		periods.DayID(start), periods.DayID(end))

	funnelRows, err := a.searchStream(ctx, customerID, accessToken, funnelQuery)
	if err != nil {
		return nil, err
	}

	payload := foldGoogleRows(clientID, baseRows, funnelRows)
	if a.logger != nil {
		a.logger.Upstream().Info("Google Ads metrics fetched",
			"clientId", clientID,
			"campaigns", len(payload.Campaigns),
			"days", len(payload.Days),
			"duration", time.Since(fetchStart))
	}
	return payload, nil
}

// searchStream executes one GAQL query and flattens the streamed batches.
func (a *GoogleAdsAdapter) searchStream(ctx context.Context, customerID, accessToken, query string) ([]googleAdsRow, error) {
	endpoint := fmt.Sprintf("%s/customers/%s/googleAds:searchStream", a.baseURL, customerID)
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode GAQL query: %w", err)
	}

	resp, err := doWithRetry(ctx, a.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(string(body)))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("developer-token", a.creds.DeveloperToken)
		return req, nil
	}, metrics.PlatformGoogleAds, a.logger)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var batches []googleAdsBatch
	if err := json.NewDecoder(resp.Body).Decode(&batches); err != nil {
		return nil, fmt.Errorf("failed to decode searchStream response: %v: %w", err, metrics.ErrUpstreamUnavailable)
	}

	var rows []googleAdsRow
	for _, batch := range batches {
		rows = append(rows, batch.Results...)
	}
	return rows, nil
}

// foldGoogleRows merges the base metric rows and the conversion-category rows
// into per-campaign totals plus per-day ledger rows.
func foldGoogleRows(clientID string, baseRows, funnelRows []googleAdsRow) *metrics.RangePayload {
	campaignTotals := make(map[string]*metrics.NormalizedCampaign)
	var campaignOrder []string
	dayTotals := make(map[string]*metrics.DayMetricRecord)
	var dayOrder []string

	day := func(dateStr string) *metrics.DayMetricRecord {
		if existing, ok := dayTotals[dateStr]; ok {
			return existing
		}
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return nil
		}
		rec := &metrics.DayMetricRecord{
			ClientID: clientID,
			Platform: metrics.PlatformGoogleAds,
			Date:     date,
		}
		dayTotals[dateStr] = rec
		dayOrder = append(dayOrder, dateStr)
		return rec
	}

	for _, row := range baseRows {
		campaignID := row.Campaign.ID.String()
		stats := metrics.PeriodStats{
			Spend:       numberToFloat(row.Metrics.CostMicros) / microsPerUnit,
			Impressions: numberToInt(row.Metrics.Impressions),
			Clicks:      numberToInt(row.Metrics.Clicks),
			Conversions: int64(numberToFloat(row.Metrics.Conversions)),
		}

		campaign, exists := campaignTotals[campaignID]
		if !exists {
			campaign = &metrics.NormalizedCampaign{
				ID:     campaignID,
				Name:   row.Campaign.Name,
				Status: row.Campaign.Status,
			}
			campaignTotals[campaignID] = campaign
			campaignOrder = append(campaignOrder, campaignID)
		}
		addStats(&campaign.Stats, stats)
		campaign.Funnel.ReservationValue += numberToFloat(row.Metrics.ConversionsValue)

		if rec := day(row.Segments.Date); rec != nil {
			addStats(&rec.Stats, stats)
			rec.Funnel.ReservationValue += numberToFloat(row.Metrics.ConversionsValue)
		}
	}

	for _, row := range funnelRows {
		campaignID := row.Campaign.ID.String()
		funnel := mapGoogleCategory(row.Segments.ConversionActionCategory, int64(numberToFloat(row.Metrics.Conversions)))

		if campaign, ok := campaignTotals[campaignID]; ok {
			addFunnel(&campaign.Funnel, funnel)
		}
		if rec := day(row.Segments.Date); rec != nil {
			addFunnel(&rec.Funnel, funnel)
		}
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

// mapGoogleCategory translates a conversion action category into the
// canonical funnel. Reservation value arrives on the base rows, not here.
func mapGoogleCategory(category string, count int64) metrics.FunnelMetrics {
	var funnel metrics.FunnelMetrics
	switch category {
	case "CONTACT", "SUBMIT_LEAD_FORM", "PHONE_CALL_LEAD":
		funnel.Contact = count
	case "BEGIN_CHECKOUT":
		funnel.BookingStep1 = count
	case "ADD_PAYMENT_INFO":
		funnel.BookingStep2 = count
	case "SIGNUP":
		funnel.BookingStep3 = count
	case "PURCHASE", "BOOK_APPOINTMENT":
		funnel.Reservations = count
	}
	return funnel
}

func numberToFloat(n json.Number) float64 {
	v, _ := n.Float64()
	return v
}

func numberToInt(n json.Number) int64 {
	if v, err := n.Int64(); err == nil {
		return v
	}
	return int64(numberToFloat(n))
}
