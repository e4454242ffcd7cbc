// Package auth issues and verifies the signed session tokens handed out at
// login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ycchuang/sheetbook/internal/common"
)

// Claims carries the registered claims plus the account email the token was
// issued for.
type Claims struct {
	jwt.RegisteredClaims
	Email string
}

func GenerateToken(email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Email: email,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetEmailFromToken verifies the signature and expiry and returns the email
// claim. Expired tokens map to the expiry error, everything else invalid maps
// to the credential error.
func GetEmailFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", common.ErrExpired)
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidCredential, err)
	}

	if !token.Valid {
		return "", fmt.Errorf("%w: invalid token", common.ErrInvalidCredential)
	}

	return claims.Email, nil
}
