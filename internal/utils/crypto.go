// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SecureCompare compares secrets in constant time. Both sides are hashed
// first so the comparison does not leak the expected length.
func SecureCompare(given, expected string) bool {
	if expected == "" {
		return false
	}
	a := sha256.Sum256([]byte(given))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
