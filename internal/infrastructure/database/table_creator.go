// Package database provides tenant instantiation
package database

import (
	"database/sql"
	"fmt"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/security"
)

// TableCreator handles the creation of the database schema for a new tenant.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tenant's database tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// SeedInitialOperator adds a default operator account so a fresh tenant can log in.
func (tc *TableCreator) SeedInitialOperator(db *sql.DB, email, passwordHash string) error {
	var operatorExists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM operators WHERE email = ?)", email).Scan(&operatorExists)
	if err != nil {
		return fmt.Errorf("failed to check for operator existence: %w", err)
	}

	if !operatorExists {
		operatorID := security.GenerateULID()
		_, err = db.Exec(`INSERT INTO operators (id, email, password_hash, role) VALUES (?, ?, ?, ?)`,
			operatorID, email, passwordHash, "admin")
		if err != nil {
			return fmt.Errorf("failed to insert default operator: %w", err)
		}
	}

	return nil
}

// Schema definitions for the metrics tiers. Day rows are the immutable
// ground truth; period_archive holds frozen summaries for closed periods.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS day_metrics (id TEXT PRIMARY KEY, client_id TEXT NOT NULL, platform TEXT NOT NULL, date TEXT NOT NULL, spend REAL NOT NULL DEFAULT 0, impressions INTEGER NOT NULL DEFAULT 0, clicks INTEGER NOT NULL DEFAULT 0, conversions INTEGER NOT NULL DEFAULT 0, contact INTEGER NOT NULL DEFAULT 0, booking_step_1 INTEGER NOT NULL DEFAULT 0, booking_step_2 INTEGER NOT NULL DEFAULT 0, booking_step_3 INTEGER NOT NULL DEFAULT 0, reservations INTEGER NOT NULL DEFAULT 0, reservation_value REAL NOT NULL DEFAULT 0, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, updated_at TIMESTAMP, UNIQUE(client_id, platform, date))`,
	`CREATE TABLE IF NOT EXISTS period_archive (id TEXT PRIMARY KEY, client_id TEXT NOT NULL, platform TEXT NOT NULL, period_type TEXT NOT NULL, period_id TEXT NOT NULL, summary_payload TEXT NOT NULL, campaigns_payload TEXT, archived_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, UNIQUE(client_id, platform, period_type, period_id))`,
	`CREATE TABLE IF NOT EXISTS operators (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE, password_hash TEXT NOT NULL, role TEXT NOT NULL, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, last_login TIMESTAMP)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_day_metrics_client_platform ON day_metrics(client_id, platform)`,
	`CREATE INDEX IF NOT EXISTS idx_day_metrics_date ON day_metrics(date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_day_metrics_unique ON day_metrics(client_id, platform, date)`,
	`CREATE INDEX IF NOT EXISTS idx_period_archive_client_platform ON period_archive(client_id, platform)`,
	`CREATE INDEX IF NOT EXISTS idx_period_archive_period ON period_archive(period_type, period_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_period_archive_unique ON period_archive(client_id, platform, period_type, period_id)`,
	`CREATE INDEX IF NOT EXISTS idx_operators_email ON operators(email)`,
}
