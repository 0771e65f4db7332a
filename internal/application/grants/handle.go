// Package grants stores protocol artifacts (codes, tokens, consent) as persisted grants.
// Callers only ever see the random handle; the store only ever sees its hash.
package grants

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/manorfm/identityserver/internal/domain"
)

const handleBytes = 32

// NewHandle returns 32 random bytes as upper-case hex
func NewHandle() (string, error) {
	buf := make([]byte, handleBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating handle: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// HashKey derives the storage key of a handle: base64(SHA256(handle + ":" + grantType))
func HashKey(handle, grantType string) string {
	sum := sha256.Sum256([]byte(handle + ":" + grantType))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// keyPrefix shortens a storage key for logs
func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// DeviceCodeKey derives the storage key of a device code
func DeviceCodeKey(deviceCode string) string {
	return HashKey(deviceCode, domain.PersistedGrantTypeDeviceCode)
}
