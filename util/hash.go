package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const hashSeparator = "$"

// NewSalt returns 32 hex characters from a random (v4) UUID.
func NewSalt() string {
	return RandomHex()
}

// RandomHex returns a random v4 UUID rendered without dashes.
func RandomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HashPassword returns "salt$digest" where digest is hex(sha256(salt+password)).
// A fresh salt is generated when salt is empty.
func HashPassword(plaintext string, salt string) string {
	if salt == "" {
		salt = NewSalt()
	}
	sum := sha256.Sum256([]byte(salt + plaintext))
	return salt + hashSeparator + hex.EncodeToString(sum[:])
}

// VerifyHash checks plaintext against a stored "salt$digest" value.
// Malformed stored values never verify.
func VerifyHash(stored string, plaintext string) bool {
	salt, digest, ok := strings.Cut(stored, hashSeparator)
	if !ok {
		return false
	}
	_, candidate, _ := strings.Cut(HashPassword(plaintext, salt), hashSeparator)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}
