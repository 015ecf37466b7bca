// Package auth issues and validates the HS256 bearer tokens the sync
// endpoints require.
package auth

import (
	"errors"
	"time"

	"github.com/fieldops/techsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the technician id.
type Claims struct {
	jwt.RegisteredClaims
	TechnicianID int64
}

// GenerateToken signs a token identifying the technician, valid for the
// given duration.
func GenerateToken(technicianID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		TechnicianID: technicianID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetTechnicianIDFromToken validates the token and extracts the technician id.
// Expired tokens map to common.ErrTokenExpired, everything else invalid to
// common.ErrInvalidToken.
func GetTechnicianIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}

	if !token.Valid {
		return 0, common.ErrInvalidToken
	}

	return claims.TechnicianID, nil
}
