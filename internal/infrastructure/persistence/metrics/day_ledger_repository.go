// Package metrics provides the concrete SQL-based implementations
// for the day-ledger and period-archive tiers.
//
// PURPOSE: durable ground truth below the hot cache
// - Day rows → day_metrics table
// - Closed-period summaries → period_archive table
package metrics

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/security"
)

// SQLDayLedgerRepository persists one row per (client, platform, day).
type SQLDayLedgerRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLDayLedgerRepository creates a new instance of the repository.
func NewSQLDayLedgerRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLDayLedgerRepository {
	return &SQLDayLedgerRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// UpsertDay writes one day row, replacing the metric columns wholesale on
// conflict. Re-writing the same day is therefore idempotent and never sums.
func (r *SQLDayLedgerRepository) UpsertDay(row metrics.DayMetricRecord) error {
	const query = `
		INSERT INTO day_metrics (id, client_id, platform, date, spend, impressions, clicks, conversions,
			contact, booking_step_1, booking_step_2, booking_step_3, reservations, reservation_value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, platform, date) DO UPDATE SET
			spend = excluded.spend,
			impressions = excluded.impressions,
			clicks = excluded.clicks,
			conversions = excluded.conversions,
			contact = excluded.contact,
			booking_step_1 = excluded.booking_step_1,
			booking_step_2 = excluded.booking_step_2,
			booking_step_3 = excluded.booking_step_3,
			reservations = excluded.reservations,
			reservation_value = excluded.reservation_value,
			updated_at = excluded.updated_at`

	start := time.Now()
	r.logger.Database().Debug("Executing day ledger upsert",
		"clientId", row.ClientID,
		"platform", row.Platform,
		"date", periods.DayID(row.Date),
		"tenantId", r.tenantID)

	_, err := r.db.Exec(
		query,
		security.GenerateULID(),
		row.ClientID,
		string(row.Platform),
		periods.DayID(row.Date),
		row.Stats.Spend,
		row.Stats.Impressions,
		row.Stats.Clicks,
		row.Stats.Conversions,
		row.Funnel.Contact,
		row.Funnel.BookingStep1,
		row.Funnel.BookingStep2,
		row.Funnel.BookingStep3,
		row.Funnel.Reservations,
		row.Funnel.ReservationValue,
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		r.logger.Database().Error("Day ledger upsert failed",
			"error", err.Error(),
			"clientId", row.ClientID,
			"platform", row.Platform,
			"date", periods.DayID(row.Date))
		return fmt.Errorf("failed to upsert day metrics: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, "DAY_LEDGER_UPSERT", time.Since(start), r.tenantID)
	return nil
}

// GetRange returns the day rows inside an inclusive date range, ordered by date.
// An empty range is not an error; callers decide how to treat gaps.
func (r *SQLDayLedgerRepository) GetRange(clientID string, platform metrics.Platform, dateRange periods.DateRange) ([]metrics.DayMetricRecord, error) {
	const query = `
		SELECT date, spend, impressions, clicks, conversions,
			contact, booking_step_1, booking_step_2, booking_step_3, reservations, reservation_value,
			COALESCE(updated_at, created_at)
		FROM day_metrics
		WHERE client_id = ? AND platform = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	start := time.Now()
	rows, err := r.db.Query(query, clientID, string(platform), periods.DayID(dateRange.Start), periods.DayID(dateRange.End))
	if err != nil {
		r.logger.Database().Error("Day ledger range query failed",
			"error", err.Error(),
			"clientId", clientID,
			"platform", platform,
			"range", dateRange.String())
		return nil, fmt.Errorf("failed to query day metrics range: %w", err)
	}
	defer rows.Close()

	var records []metrics.DayMetricRecord
	for rows.Next() {
		var rec metrics.DayMetricRecord
		var dateStr, updatedStr string
		if err := rows.Scan(
			&dateStr,
			&rec.Stats.Spend,
			&rec.Stats.Impressions,
			&rec.Stats.Clicks,
			&rec.Stats.Conversions,
			&rec.Funnel.Contact,
			&rec.Funnel.BookingStep1,
			&rec.Funnel.BookingStep2,
			&rec.Funnel.BookingStep3,
			&rec.Funnel.Reservations,
			&rec.Funnel.ReservationValue,
			&updatedStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan day metrics row: %w", err)
		}

		rec.ClientID = clientID
		rec.Platform = platform
		if rec.Date, err = time.ParseInLocation("2006-01-02", dateStr, time.UTC); err != nil {
			return nil, fmt.Errorf("failed to parse day metrics date %q: %w", dateStr, err)
		}
		if parsed, perr := time.ParseInLocation("2006-01-02 15:04:05", updatedStr, time.UTC); perr == nil {
			rec.UpdatedAt = parsed
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day metrics rows: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, "RANGE_DAY_LEDGER", time.Since(start), r.tenantID)
	return records, nil
}
