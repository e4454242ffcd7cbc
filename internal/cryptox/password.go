// Package cryptox handles password hashing and verification for directory
// accounts.
package cryptox

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ResetRequiredSentinel is stored in place of a password hash for accounts
// created by invitation. It is not a valid bcrypt hash, so it can never
// verify against any password; authentication must still short-circuit on it
// explicitly so the caller can distinguish "wrong password" from "account not
// yet activated".
const ResetRequiredSentinel = "RESET_REQUIRED"

// HashPassword returns the bcrypt hash of password at default cost.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches the stored hash. The
// reset-required sentinel never matches.
func CheckPassword(hash, password string) bool {
	if hash == ResetRequiredSentinel {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsResetRequired reports whether the stored hash is the sentinel written for
// invited-but-not-yet-activated accounts.
func IsResetRequired(hash string) bool {
	return hash == ResetRequiredSentinel
}

// ErrWeakPassword is returned by ValidatePassword for passwords below the
// minimum length.
var ErrWeakPassword = errors.New("password too short")

// ValidatePassword applies the minimal strength rule enforced at
// registration and reset.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return ErrWeakPassword
	}
	return nil
}
