package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

const keyBytes = 32

var keyEncoding = base64.RawURLEncoding

// GenerateKey returns a new random access key: 32 bytes of entropy in
// unpadded URL-safe base64, so keys can travel in bearer headers and path
// segments unescaped.
func GenerateKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyEncoding.EncodeToString(buf), nil
}

// IsValidKey reports whether raw has the exact shape of a generated key.
// Storage is never consulted for values that fail this check.
func IsValidKey(raw string) bool {
	if len(raw) != keyEncoding.EncodedLen(keyBytes) {
		return false
	}
	if strings.TrimSpace(raw) != raw {
		return false
	}
	decoded, err := keyEncoding.DecodeString(raw)
	return err == nil && len(decoded) == keyBytes
}
