// Package reconcile merges partially-overlapping metric sources for one
// period into a single consistent summary. Source selection is exclusive per
// metric family, never additive, so the same logical conversion is never
// counted twice.
package reconcile

import (
	"sort"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
)

// Sources carries the candidate inputs for one period. Any subset may be nil
// or empty; priority is summary, then day-ledger rows, then fresh upstream
// data.
type Sources struct {
	Summary  *metrics.PeriodSummary
	DayRows  []metrics.DayMetricRecord
	Upstream *metrics.RangePayload
}

// Derive recomputes every derived ratio from the selected base counters.
// Stored derived fields are never passed through.
func Derive(stats *metrics.PeriodStats, funnel *metrics.FunnelMetrics) {
	stats.CTR = 0
	stats.CPC = 0
	if stats.Impressions > 0 {
		stats.CTR = float64(stats.Clicks) / float64(stats.Impressions) * 100
	}
	if stats.Clicks > 0 {
		stats.CPC = stats.Spend / float64(stats.Clicks)
	}

	funnel.ROAS = 0
	funnel.CostPerConv = 0
	if stats.Spend > 0 {
		funnel.ROAS = funnel.ReservationValue / stats.Spend
	}
	if funnel.Reservations > 0 {
		funnel.CostPerConv = stats.Spend / float64(funnel.Reservations)
	}
}

// SumDays aggregates day-ledger rows into one stats+funnel pair. This is the
// only place stats are summed: across the rows of a range, never across
// redundant sources.
func SumDays(rows []metrics.DayMetricRecord) (metrics.PeriodStats, metrics.FunnelMetrics) {
	var stats metrics.PeriodStats
	var funnel metrics.FunnelMetrics
	for _, row := range rows {
		stats.Spend += row.Stats.Spend
		stats.Impressions += row.Stats.Impressions
		stats.Clicks += row.Stats.Clicks
		stats.Conversions += row.Stats.Conversions

		funnel.Contact += row.Funnel.Contact
		funnel.BookingStep1 += row.Funnel.BookingStep1
		funnel.BookingStep2 += row.Funnel.BookingStep2
		funnel.BookingStep3 += row.Funnel.BookingStep3
		funnel.Reservations += row.Funnel.Reservations
		funnel.ReservationValue += row.Funnel.ReservationValue
	}
	return stats, funnel
}

// SumCampaigns aggregates campaign rows into one stats+funnel pair.
func SumCampaigns(campaigns []metrics.NormalizedCampaign) (metrics.PeriodStats, metrics.FunnelMetrics) {
	var stats metrics.PeriodStats
	var funnel metrics.FunnelMetrics
	for _, c := range campaigns {
		stats.Spend += c.Stats.Spend
		stats.Impressions += c.Stats.Impressions
		stats.Clicks += c.Stats.Clicks
		stats.Conversions += c.Stats.Conversions

		funnel.Contact += c.Funnel.Contact
		funnel.BookingStep1 += c.Funnel.BookingStep1
		funnel.BookingStep2 += c.Funnel.BookingStep2
		funnel.BookingStep3 += c.Funnel.BookingStep3
		funnel.Reservations += c.Funnel.Reservations
		funnel.ReservationValue += c.Funnel.ReservationValue
	}
	return stats, funnel
}

func statsHaveSignal(s metrics.PeriodStats) bool {
	return s.Spend != 0 || s.Impressions != 0 || s.Clicks != 0 || s.Conversions != 0
}

// Reconcile produces one canonical summary from the available sources. An
// explicit period-level summary with any non-zero funnel value is
// authoritative over day-ledger sums, which in turn beat freshly parsed
// upstream data. Derived metrics are recomputed unconditionally.
func Reconcile(src Sources) *metrics.PeriodSummary {
	out := metrics.EmptySummary()

	summaryStats := metrics.PeriodStats{}
	summaryFunnel := metrics.FunnelMetrics{}
	if src.Summary != nil {
		summaryStats = src.Summary.Stats
		summaryFunnel = src.Summary.Funnel
	}
	ledgerStats, ledgerFunnel := SumDays(src.DayRows)

	upstreamStats := metrics.PeriodStats{}
	upstreamFunnel := metrics.FunnelMetrics{}
	if src.Upstream != nil {
		upstreamStats, upstreamFunnel = SumCampaigns(src.Upstream.Campaigns)
	}

	switch {
	case statsHaveSignal(summaryStats):
		out.Stats = summaryStats
	case statsHaveSignal(ledgerStats):
		out.Stats = ledgerStats
	default:
		out.Stats = upstreamStats
	}

	switch {
	case summaryFunnel.HasSignal():
		out.Funnel = summaryFunnel
	case ledgerFunnel.HasSignal():
		out.Funnel = ledgerFunnel
	default:
		out.Funnel = upstreamFunnel
	}

	switch {
	case src.Summary != nil && len(src.Summary.Campaigns) > 0:
		out.Campaigns = append(out.Campaigns, src.Summary.Campaigns...)
	case src.Upstream != nil && len(src.Upstream.Campaigns) > 0:
		out.Campaigns = append(out.Campaigns, src.Upstream.Campaigns...)
	}

	Derive(&out.Stats, &out.Funnel)
	return out
}

// FromUpstream builds a summary directly from a fresh upstream payload.
func FromUpstream(payload *metrics.RangePayload) *metrics.PeriodSummary {
	out := metrics.EmptySummary()
	if payload == nil {
		return out
	}
	out.Stats, out.Funnel = SumCampaigns(payload.Campaigns)
	out.Campaigns = append(out.Campaigns, payload.Campaigns...)
	Derive(&out.Stats, &out.Funnel)
	return out
}

// FromLedger builds a summary from day-ledger rows alone.
func FromLedger(rows []metrics.DayMetricRecord) *metrics.PeriodSummary {
	out := metrics.EmptySummary()
	out.Stats, out.Funnel = SumDays(rows)
	Derive(&out.Stats, &out.Funnel)
	return out
}

// Merge sums independently resolved sub-range summaries into one result.
// Campaign rows with the same id are folded together so a campaign active in
// two sub-ranges appears once.
func Merge(parts []*metrics.PeriodSummary) *metrics.PeriodSummary {
	out := metrics.EmptySummary()
	byID := make(map[string]*metrics.NormalizedCampaign)

	for _, part := range parts {
		if part == nil {
			continue
		}
		out.Stats.Spend += part.Stats.Spend
		out.Stats.Impressions += part.Stats.Impressions
		out.Stats.Clicks += part.Stats.Clicks
		out.Stats.Conversions += part.Stats.Conversions

		out.Funnel.Contact += part.Funnel.Contact
		out.Funnel.BookingStep1 += part.Funnel.BookingStep1
		out.Funnel.BookingStep2 += part.Funnel.BookingStep2
		out.Funnel.BookingStep3 += part.Funnel.BookingStep3
		out.Funnel.Reservations += part.Funnel.Reservations
		out.Funnel.ReservationValue += part.Funnel.ReservationValue

		for _, c := range part.Campaigns {
			if existing, ok := byID[c.ID]; ok {
				existing.Stats.Spend += c.Stats.Spend
				existing.Stats.Impressions += c.Stats.Impressions
				existing.Stats.Clicks += c.Stats.Clicks
				existing.Stats.Conversions += c.Stats.Conversions
				existing.Funnel.Contact += c.Funnel.Contact
				existing.Funnel.BookingStep1 += c.Funnel.BookingStep1
				existing.Funnel.BookingStep2 += c.Funnel.BookingStep2
				existing.Funnel.BookingStep3 += c.Funnel.BookingStep3
				existing.Funnel.Reservations += c.Funnel.Reservations
				existing.Funnel.ReservationValue += c.Funnel.ReservationValue
				continue
			}
			copied := c
			byID[c.ID] = &copied
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		campaign := *byID[id]
		Derive(&campaign.Stats, &campaign.Funnel)
		out.Campaigns = append(out.Campaigns, campaign)
	}

	Derive(&out.Stats, &out.Funnel)
	return out
}
