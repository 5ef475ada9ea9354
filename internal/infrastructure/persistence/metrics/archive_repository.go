package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/domain/repositories"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/security"
)

// SQLArchiveRepository persists one frozen summary per closed period.
type SQLArchiveRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLArchiveRepository creates a new instance of the repository.
func NewSQLArchiveRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLArchiveRepository {
	return &SQLArchiveRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// archivedSummary is the JSON shape of the summary_payload column. Campaigns
// are stored in a sibling column so large campaign lists can be skipped on
// summary-only reads later without a schema change.
type archivedSummary struct {
	Stats  metrics.PeriodStats   `json:"stats"`
	Funnel metrics.FunnelMetrics `json:"funnel"`
}

// Get loads one archive entry. A missing row returns (nil, nil).
func (r *SQLArchiveRepository) Get(key periods.PeriodKey) (*repositories.ArchiveEntry, error) {
	const query = `
		SELECT summary_payload, campaigns_payload, archived_at
		FROM period_archive
		WHERE client_id = ? AND platform = ? AND period_type = ? AND period_id = ?`

	start := time.Now()
	var summaryPayload string
	var campaignsPayload sql.NullString
	var archivedAtStr string
	err := r.db.QueryRow(query, key.ClientID, string(key.Platform), string(key.PeriodType), key.PeriodID).
		Scan(&summaryPayload, &campaignsPayload, &archivedAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Database().Error("Archive read failed",
			"error", err.Error(),
			"cacheKey", key.CacheKey())
		return nil, fmt.Errorf("failed to read period archive: %w", err)
	}

	var stored archivedSummary
	if err := json.Unmarshal([]byte(summaryPayload), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode archived summary for %s: %w", key.CacheKey(), err)
	}

	summary := &metrics.PeriodSummary{
		Stats:     stored.Stats,
		Funnel:    stored.Funnel,
		Campaigns: []metrics.NormalizedCampaign{},
	}
	if campaignsPayload.Valid && campaignsPayload.String != "" {
		if err := json.Unmarshal([]byte(campaignsPayload.String), &summary.Campaigns); err != nil {
			return nil, fmt.Errorf("failed to decode archived campaigns for %s: %w", key.CacheKey(), err)
		}
	}

	entry := &repositories.ArchiveEntry{Key: key, Summary: summary}
	if parsed, perr := time.ParseInLocation("2006-01-02 15:04:05", archivedAtStr, time.UTC); perr == nil {
		entry.ArchivedAt = parsed
	}

	database.CheckAndLogSlowQuery(r.logger, "ARCHIVE_GET", time.Since(start), r.tenantID)
	return entry, nil
}

// Upsert freezes a summary for a closed period. Replaying the same period
// replaces the row, so archival runs stay idempotent.
func (r *SQLArchiveRepository) Upsert(key periods.PeriodKey, summary *metrics.PeriodSummary) error {
	stored := archivedSummary{Stats: summary.Stats, Funnel: summary.Funnel}
	summaryPayload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode summary for %s: %w", key.CacheKey(), err)
	}
	campaignsPayload, err := json.Marshal(summary.Campaigns)
	if err != nil {
		return fmt.Errorf("failed to encode campaigns for %s: %w", key.CacheKey(), err)
	}

	const query = `
		INSERT INTO period_archive (id, client_id, platform, period_type, period_id, summary_payload, campaigns_payload, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, platform, period_type, period_id) DO UPDATE SET
			summary_payload = excluded.summary_payload,
			campaigns_payload = excluded.campaigns_payload,
			archived_at = excluded.archived_at`

	start := time.Now()
	r.logger.Database().Debug("Executing archive upsert",
		"cacheKey", key.CacheKey(),
		"tenantId", r.tenantID)

	_, err = r.db.Exec(
		query,
		security.GenerateULID(),
		key.ClientID,
		string(key.Platform),
		string(key.PeriodType),
		key.PeriodID,
		string(summaryPayload),
		string(campaignsPayload),
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		r.logger.Database().Error("Archive upsert failed",
			"error", err.Error(),
			"cacheKey", key.CacheKey())
		return fmt.Errorf("failed to upsert period archive: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, "ARCHIVE_UPSERT", time.Since(start), r.tenantID)
	return nil
}

// DeleteOlderThan prunes archive rows of one period type whose period_id sorts
// strictly below the cutoff. Period IDs are zero-padded so lexicographic order
// matches chronological order.
func (r *SQLArchiveRepository) DeleteOlderThan(periodType periods.PeriodType, cutoffPeriodID string) (int64, error) {
	const query = `DELETE FROM period_archive WHERE period_type = ? AND period_id < ?`

	start := time.Now()
	result, err := r.db.Exec(query, string(periodType), cutoffPeriodID)
	if err != nil {
		r.logger.Database().Error("Archive retention delete failed",
			"error", err.Error(),
			"periodType", periodType,
			"cutoff", cutoffPeriodID)
		return 0, fmt.Errorf("failed to prune period archive: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned archive rows: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, "ARCHIVE_PRUNE", time.Since(start), r.tenantID)
	return deleted, nil
}
