// Package repositories declares the durable-store contracts the application
// layer depends on. The engine is agnostic to the storage technology behind
// them.
package repositories

import (
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
)

// LedgerRepository persists one row per (client, platform, day).
type LedgerRepository interface {
	UpsertDay(row metrics.DayMetricRecord) error
	GetRange(clientID string, platform metrics.Platform, r periods.DateRange) ([]metrics.DayMetricRecord, error)
}

// ArchiveEntry is one closed-period summary row.
type ArchiveEntry struct {
	Key        periods.PeriodKey
	Summary    *metrics.PeriodSummary
	ArchivedAt time.Time
}

// ArchiveRepository persists one pre-aggregated summary per closed period.
// Upserts keep re-archival and backfill idempotent.
type ArchiveRepository interface {
	Get(key periods.PeriodKey) (*ArchiveEntry, error)
	Upsert(key periods.PeriodKey, summary *metrics.PeriodSummary) error
	DeleteOlderThan(periodType periods.PeriodType, cutoffPeriodID string) (int64, error)
}

// OperatorRepository stores sysop dashboard credentials.
type OperatorRepository interface {
	FindByEmail(email string) (id, passwordHash string, err error)
	Create(id, email, passwordHash string) error
}
