// Package metrics defines the canonical performance-metric shapes shared by
// every tier of the resolution engine.
package metrics

import (
	"time"
)

// Platform identifies an upstream advertising platform.
type Platform string

const (
	PlatformMeta      Platform = "meta"
	PlatformGoogleAds Platform = "google"
)

// Source identifies which tier answered a resolution. It is always populated
// on a ResolvedReport so calling collaborators can reason about freshness.
type Source string

const (
	SourceHotCacheFresh Source = "hot-cache-fresh"
	SourceHotCacheStale Source = "hot-cache-stale"
	SourceArchive       Source = "archive"
	SourceDayLedger     Source = "day-ledger"
	SourceLiveFetch     Source = "live-fetch"
	SourceNone          Source = "none"
)

// PeriodStats holds the base advertising counters plus derived ratios.
// CTR and CPC are always recomputed from the base counters by the reconciler;
// stored values are never trusted.
type PeriodStats struct {
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
}

// FunnelMetrics holds the closed set of conversion-funnel counters. Platform
// specific action names are mapped into these fields at the upstream adapter
// boundary, never downstream.
type FunnelMetrics struct {
	Contact          int64   `json:"contact"`
	BookingStep1     int64   `json:"bookingStep1"`
	BookingStep2     int64   `json:"bookingStep2"`
	BookingStep3     int64   `json:"bookingStep3"`
	Reservations     int64   `json:"reservations"`
	ReservationValue float64 `json:"reservationValue"`
	ROAS             float64 `json:"roas"`
	CostPerConv      float64 `json:"costPerConversion"`
}

// HasSignal reports whether any funnel counter carries a non-zero value.
func (f FunnelMetrics) HasSignal() bool {
	return f.Contact != 0 || f.BookingStep1 != 0 || f.BookingStep2 != 0 ||
		f.BookingStep3 != 0 || f.Reservations != 0 || f.ReservationValue != 0
}

// NormalizedCampaign is one campaign's contribution to a period, already
// mapped into the canonical stats+funnel vocabulary by the upstream adapter.
type NormalizedCampaign struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status string        `json:"status"`
	Stats  PeriodStats   `json:"stats"`
	Funnel FunnelMetrics `json:"funnel"`
}

// PeriodSummary is the canonical result shape stored in the Hot Period Cache
// and the Archive, and returned to every caller.
type PeriodSummary struct {
	Stats     PeriodStats          `json:"stats"`
	Funnel    FunnelMetrics        `json:"funnel"`
	Campaigns []NormalizedCampaign `json:"campaigns"`
}

// HasSignal reports whether the summary carries at least one non-zero metric
// or at least one campaign. Archive entries failing this check are skipped in
// favor of the day ledger.
func (s *PeriodSummary) HasSignal() bool {
	if s == nil {
		return false
	}
	if len(s.Campaigns) > 0 {
		return true
	}
	st := s.Stats
	return st.Spend != 0 || st.Impressions != 0 || st.Clicks != 0 ||
		st.Conversions != 0 || s.Funnel.HasSignal()
}

// EmptySummary returns the well-defined "no data" result: zeroed stats and
// funnel, empty campaign list. Never nil slices in the JSON surface.
func EmptySummary() *PeriodSummary {
	return &PeriodSummary{Campaigns: []NormalizedCampaign{}}
}

// DayMetricRecord is one durable day-ledger row per (client, platform, date).
// It is the finest-grained source of truth for historical aggregation.
type DayMetricRecord struct {
	ClientID  string        `json:"clientId"`
	Platform  Platform      `json:"platform"`
	Date      time.Time     `json:"date"`
	Stats     PeriodStats   `json:"stats"`
	Funnel    FunnelMetrics `json:"funnel"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// RangePayload is what an upstream fetch yields for a date range: the
// normalized campaigns plus a per-day breakdown that feeds the day ledger
// write-through without a second upstream call.
type RangePayload struct {
	Campaigns []NormalizedCampaign `json:"campaigns"`
	Days      []DayMetricRecord    `json:"days"`
}

// ResolvedReport is the outward result of one resolution.
type ResolvedReport struct {
	Success    bool           `json:"success"`
	Summary    *PeriodSummary `json:"summary"`
	SourceUsed Source         `json:"sourceUsed"`
	PeriodType string         `json:"periodType"`
	Degraded   bool           `json:"degraded"`
	Failure    string         `json:"failure,omitempty"`
}
