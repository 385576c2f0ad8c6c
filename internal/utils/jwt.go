package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/models"
)

// Claims carries the caller identity and tenant.
type Claims struct {
	UserID       string      `json:"user_id"`
	ClinicID     string      `json:"clinic_id"`
	LaboratoryID *string     `json:"laboratory_id,omitempty"`
	Role         models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateTokens generates both access and refresh tokens for a user.
func GenerateTokens(user *models.User, cfg *config.Config) (accessToken string, refreshToken string, err error) {
	now := time.Now()
	accessToken, err = signToken(user, now, now.Add(time.Duration(cfg.JWTExpirationMinutes)*time.Minute), cfg.JWTSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err = signToken(user, now, RefreshExpiry(cfg, now), cfg.JWTRefreshSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// RefreshExpiry is when a refresh token issued at now expires.
func RefreshExpiry(cfg *config.Config, now time.Time) time.Time {
	return now.Add(time.Duration(cfg.JWTRefreshExpirationHours) * time.Hour)
}

func signToken(user *models.User, issuedAt, expiresAt time.Time, secret string) (string, error) {
	claims := &Claims{
		UserID:       user.ID,
		ClinicID:     user.ClinicID,
		LaboratoryID: user.LaboratoryID,
		Role:         user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			Subject:   user.ID,
			// Distinguishes tokens issued within the same second.
			ID: fmt.Sprintf("%s-%d", user.ID, issuedAt.UnixNano()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token.
func ValidateToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.ClinicID == "" {
		return nil, fmt.Errorf("token has no clinic")
	}
	return claims, nil
}
