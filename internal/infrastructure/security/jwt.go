// Package security provides JWT token utilities
package security

import (
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateOperatorToken creates a JWT token for a sysop dashboard operator.
func GenerateOperatorToken(operatorID, email, tenantID, jwtSecret string) (string, error) {
	claims := jwt.MapClaims{
		"operatorId": operatorID,
		"email":      email,
		"tenantId":   tenantID,
		"role":       "operator",
		"iat":        time.Now().UTC().Unix(),
		"exp":        time.Now().UTC().Add(24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	result, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		log.Printf("ERROR: Failed to sign JWT token: %v", err)
		return "", err
	}

	return result, nil
}

// OperatorFromClaims extracts the operator identity from validated claims.
func OperatorFromClaims(claims jwt.MapClaims) (operatorID, email string, ok bool) {
	operatorID, okID := claims["operatorId"].(string)
	email, okEmail := claims["email"].(string)
	if role, okRole := claims["role"].(string); !okRole || role != "operator" {
		return "", "", false
	}
	return operatorID, email, okID && okEmail
}
