package services

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
)

// AuthService authenticates sysop dashboard operators.
type AuthService struct {
	logger *logging.ChanneledLogger
}

// NewAuthService creates a new auth service.
func NewAuthService(logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{logger: logger}
}

// Login verifies operator credentials and mints a session token.
func (s *AuthService) Login(tenantCtx *tenant.Context, email, password string) (string, error) {
	start := time.Now()

	operatorID, passwordHash, err := tenantCtx.OperatorRepo().FindByEmail(email)
	if err != nil {
		if s.logger != nil {
			s.logger.Auth().Warn("Operator login failed: unknown email", "tenantId", tenantCtx.TenantID, "email", email)
		}
		return "", fmt.Errorf("invalid credentials")
	}

	if !security.VerifyPassword(passwordHash, password) {
		if s.logger != nil {
			s.logger.Auth().Warn("Operator login failed: bad password", "tenantId", tenantCtx.TenantID, "email", email)
		}
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := security.GenerateOperatorToken(operatorID, email, tenantCtx.TenantID, tenantCtx.Config.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if s.logger != nil {
		s.logger.Auth().Info("Operator login succeeded",
			"tenantId", tenantCtx.TenantID,
			"email", email,
			"duration", time.Since(start))
	}
	return token, nil
}
