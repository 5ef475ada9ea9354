package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/domain/repositories"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/monitoring"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
)

// Year-over-year comparisons need a full trailing year plus the period being
// compared, so retention never drops below these floors.
const (
	minRetentionMonths = 13
	minRetentionWeeks  = 53
)

// ArchiveEnv bundles the per-tenant collaborators one archival run needs.
type ArchiveEnv struct {
	TenantID string
	Archive  repositories.ArchiveRepository
	Cache    interfaces.MetricsCache
}

// ArchivalService migrates closed periods out of the hot cache into the
// archive and prunes archive rows past the retention horizon. Every operation
// is idempotent; reruns are safe.
type ArchivalService struct {
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewArchivalService creates a new archival service.
func NewArchivalService(logger *logging.ChanneledLogger) *ArchivalService {
	return &ArchivalService{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the reference clock for tests.
func (s *ArchivalService) SetClock(now func() time.Time) {
	s.now = now
}

// RunMonthlyArchival migrates hot month entries whose period has closed.
func (s *ArchivalService) RunMonthlyArchival(env ArchiveEnv) (int, error) {
	archived, err := s.archiveClosed(env, periods.PeriodMonth)
	monitoring.RecordArchivalRun("monthly", string(periods.PeriodMonth), archived)
	return archived, err
}

// RunWeeklyArchival migrates hot week entries whose period has closed, and
// sweeps closed day entries along with them so day summaries survive the
// cache TTL.
func (s *ArchivalService) RunWeeklyArchival(env ArchiveEnv) (int, error) {
	archivedWeeks, err := s.archiveClosed(env, periods.PeriodWeek)
	monitoring.RecordArchivalRun("weekly", string(periods.PeriodWeek), archivedWeeks)
	if err != nil {
		return archivedWeeks, err
	}

	archivedDays, err := s.archiveClosed(env, periods.PeriodDay)
	monitoring.RecordArchivalRun("weekly", string(periods.PeriodDay), archivedDays)
	return archivedWeeks + archivedDays, err
}

// archiveClosed enumerates hot entries of one period type that the classifier
// no longer considers current, writes each into the archive, and deletes the
// hot entry only after the archive write succeeded. That ordering is the one
// cross-store invariant in the system and must not be reordered.
func (s *ArchivalService) archiveClosed(env ArchiveEnv, periodType periods.PeriodType) (int, error) {
	start := time.Now()
	now := s.now()
	var archived int
	var firstErr error

	for _, key := range env.Cache.HotPeriodKeys(env.TenantID) {
		if key.PeriodType != periodType {
			continue
		}

		keyRange, err := periods.RangeForKey(key)
		if err != nil {
			if s.logger != nil {
				s.logger.LogError(logging.ChannelArchive, "period key range derivation", err, env.TenantID)
			}
			continue
		}
		if periods.Classify(now, keyRange).IsCurrent {
			continue
		}

		entry, found := env.Cache.GetHotPeriod(env.TenantID, key)
		if !found {
			continue
		}

		if err := env.Archive.Upsert(key, entry.Summary); err != nil {
			// The hot entry stays authoritative until the archive holds the data.
			if s.logger != nil {
				s.logger.LogError(logging.ChannelArchive, "closed period archive write", err, env.TenantID)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		env.Cache.DeleteHotPeriod(env.TenantID, key)
		archived++
	}

	if s.logger != nil && archived > 0 {
		s.logger.Archive().Info("Closed periods archived",
			"tenantId", env.TenantID,
			"periodType", periodType,
			"archived", archived,
			"duration", time.Since(start))
	}
	return archived, firstErr
}

// PruneRetention deletes archive rows older than the configured horizon. The
// horizon is expressed in whole periods and clamped to the year-over-year floor.
func (s *ArchivalService) PruneRetention(env ArchiveEnv, horizonMonths, horizonWeeks int) (int64, error) {
	if horizonMonths < minRetentionMonths {
		horizonMonths = minRetentionMonths
	}
	if horizonWeeks < minRetentionWeeks {
		horizonWeeks = minRetentionWeeks
	}

	now := s.now()
	var totalPruned int64

	cutoffs := []struct {
		periodType periods.PeriodType
		cutoffID   string
	}{
		{periods.PeriodMonth, periods.MonthID(now.AddDate(0, -horizonMonths, 0))},
		{periods.PeriodWeek, periods.WeekID(now.AddDate(0, 0, -horizonWeeks*7))},
		{periods.PeriodDay, periods.DayID(now.AddDate(0, -horizonMonths, 0))},
	}

	for _, cutoff := range cutoffs {
		pruned, err := env.Archive.DeleteOlderThan(cutoff.periodType, cutoff.cutoffID)
		if err != nil {
			return totalPruned, fmt.Errorf("retention prune failed for %s: %w", cutoff.periodType, err)
		}
		monitoring.RecordRetentionPrune(string(cutoff.periodType), pruned)
		totalPruned += pruned

		if s.logger != nil && pruned > 0 {
			s.logger.Archive().Info("Archive rows pruned",
				"tenantId", env.TenantID,
				"periodType", cutoff.periodType,
				"cutoff", cutoff.cutoffID,
				"pruned", pruned)
		}
	}

	return totalPruned, nil
}

// Start runs the archival scheduler until the context ends. Each tick it
// re-checks the calendar; month and week rollovers trigger the corresponding
// run for every active tenant. envProvider is re-invoked per tick so newly
// activated tenants are picked up without a restart.
func (s *ArchivalService) Start(ctx context.Context, envProvider func() ([]ArchiveEnv, error)) {
	ticker := time.NewTicker(config.ArchivalCheckInterval)
	defer ticker.Stop()

	lastMonth := periods.MonthID(s.now())
	lastWeek := periods.WeekID(s.now())

	if s.logger != nil {
		s.logger.Archive().Info("Archival scheduler started",
			"checkInterval", config.ArchivalCheckInterval,
			"retentionMonths", config.RetentionMonths,
			"retentionWeeks", config.RetentionWeeks)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Archive().Info("Archival scheduler stopping")
			}
			return
		case <-ticker.C:
			now := s.now()
			monthRolled := periods.MonthID(now) != lastMonth
			weekRolled := periods.WeekID(now) != lastWeek
			if !monthRolled && !weekRolled {
				continue
			}

			envs, err := envProvider()
			if err != nil {
				if s.logger != nil {
					s.logger.LogError(logging.ChannelArchive, "archival env enumeration", err, "system")
				}
				continue
			}

			for _, env := range envs {
				if weekRolled {
					if _, err := s.RunWeeklyArchival(env); err != nil && s.logger != nil {
						s.logger.LogError(logging.ChannelArchive, "weekly archival", err, env.TenantID)
					}
				}
				if monthRolled {
					if _, err := s.RunMonthlyArchival(env); err != nil && s.logger != nil {
						s.logger.LogError(logging.ChannelArchive, "monthly archival", err, env.TenantID)
					}
					if _, err := s.PruneRetention(env, config.RetentionMonths, config.RetentionWeeks); err != nil && s.logger != nil {
						s.logger.LogError(logging.ChannelArchive, "retention prune", err, env.TenantID)
					}
				}
			}

			lastMonth = periods.MonthID(now)
			lastWeek = periods.WeekID(now)
		}
	}
}
