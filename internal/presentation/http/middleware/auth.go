package middleware

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// OperatorAuthMiddleware protects operator endpoints with the per-tenant JWT.
// It must run after TenantMiddleware so the tenant's secret is available.
func OperatorAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantCtx, ok := GetTenantContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = authHeader[7:]
		}
		if token == "" {
			// Browsers cannot set headers on a websocket upgrade.
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		claims, err := security.ValidateJWT(token, tenantCtx.Config.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		operatorID, email, ok := security.OperatorFromClaims(claims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid operator token"})
			c.Abort()
			return
		}

		c.Set("operatorId", operatorID)
		c.Set("operatorEmail", email)

		c.Next()
	}
}
