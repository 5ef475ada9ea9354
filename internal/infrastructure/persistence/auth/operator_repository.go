// Package auth provides the concrete SQL-based implementation for sysop
// operator credential persistence.
package auth

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/persistence/database"
)

// SQLOperatorRepository stores sysop dashboard credentials.
type SQLOperatorRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLOperatorRepository creates a new instance of the repository.
func NewSQLOperatorRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLOperatorRepository {
	return &SQLOperatorRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// FindByEmail looks up one operator's id and password hash.
func (r *SQLOperatorRepository) FindByEmail(email string) (string, string, error) {
	const query = `SELECT id, password_hash FROM operators WHERE email = ?`

	start := time.Now()
	var id, passwordHash string
	err := r.db.QueryRow(query, email).Scan(&id, &passwordHash)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("operator not found: %s", email)
	}
	if err != nil {
		r.logger.Database().Error("Operator lookup failed", "error", err.Error(), "email", email)
		return "", "", fmt.Errorf("failed to look up operator: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, "OPERATOR_LOOKUP", time.Since(start), r.tenantID)
	return id, passwordHash, nil
}

// Create inserts a new operator row.
func (r *SQLOperatorRepository) Create(id, email, passwordHash string) error {
	const query = `INSERT INTO operators (id, email, password_hash, role) VALUES (?, ?, ?, ?)`

	start := time.Now()
	_, err := r.db.Exec(query, id, email, passwordHash, "operator")
	if err != nil {
		r.logger.Database().Error("Operator insert failed", "error", err.Error(), "email", email)
		return fmt.Errorf("failed to create operator: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, "OPERATOR_CREATE", time.Since(start), r.tenantID)
	return nil
}
