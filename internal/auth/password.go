package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrPasswordTooLong = errors.New("password exceeds maximum length of 72 bytes")
)

// HashPassword creates a bcrypt hash suitable for KOMPANION_AUTH_PASSWORD.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	// bcrypt has a 72-byte limit
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// isBcryptHash reports whether a configured password is already a bcrypt hash.
func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// CheckAdminPassword compares a presented password with the configured one,
// which may be plaintext or a bcrypt hash.
func CheckAdminPassword(presented, configured string) error {
	if isBcryptHash(configured) {
		err := bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// HashDeviceSecret is the unsalted hex MD5 digest KOReader's sync plugin
// sends as its key. It must stay bit-exact for reader compatibility and is
// not a password-storage recommendation.
func HashDeviceSecret(plaintext string) string {
	sum := md5.Sum([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// MatchDeviceSecret checks a presented secret against a stored digest.
// With preHashed the secret is taken as a digest already; otherwise it is
// hashed first. Exactly one of the two comparisons runs.
func MatchDeviceSecret(storedDigest, presented string, preHashed bool) bool {
	candidate := strings.ToLower(presented)
	if !preHashed {
		candidate = HashDeviceSecret(presented)
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(strings.ToLower(storedDigest))) == 1
}
