package password

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword is returned when a password does not match its hash
var ErrInvalidPassword = errors.New("invalid password")

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword checks if a password matches its hash
func CheckPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	return nil
}

// HashSecret returns the base64 SHA-256 digest stored for a shared secret
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HashSecret512 returns the base64 SHA-512 digest of a shared secret
func HashSecret512(secret string) string {
	sum := sha512.Sum512([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// MatchesSecret compares a presented secret with a stored one.
// Stored values may be bcrypt hashes or base64 SHA-256/SHA-512 digests.
func MatchesSecret(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return CheckPassword(presented, stored) == nil
	}
	for _, candidate := range []string{HashSecret(presented), HashSecret512(presented)} {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1 {
			return true
		}
	}
	return false
}
