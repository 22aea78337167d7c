package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// ValidatePassword checks minimal password requirements.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// HashPassword hashes one plaintext password for the admin_password_hash setting.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword verifies plaintext password against a bcrypt hash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}

// AdminCredential is the shared administrative secret. A bcrypt hash takes
// precedence over a plaintext password when both are configured.
type AdminCredential struct {
	Password     string
	PasswordHash string
}

// Configured reports whether any admin secret is set.
func (c AdminCredential) Configured() bool {
	return strings.TrimSpace(c.PasswordHash) != "" || c.Password != ""
}

// Match reports whether candidate is the admin secret. An unconfigured
// credential matches nothing.
func (c AdminCredential) Match(candidate string) bool {
	if candidate == "" {
		return false
	}
	if strings.TrimSpace(c.PasswordHash) != "" {
		return VerifyPassword(c.PasswordHash, candidate)
	}
	if c.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(candidate)) == 1
}
