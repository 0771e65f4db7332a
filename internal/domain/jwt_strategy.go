package domain

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RSAKeySize is the size of generated signing keys
const RSAKeySize = 2048

// SigningAlgorithm is the JWS algorithm every strategy signs with
const SigningAlgorithm = "RS256"

// JWTStrategy signs tokens and exposes the validation key material
type JWTStrategy interface {
	// Sign signs the claims with the strategy's private key
	Sign(claims jwt.Claims) (string, error)
	// GetPublicKey returns the public key for token validation
	GetPublicKey() *rsa.PublicKey
	// GetKeyID returns the current key ID
	GetKeyID() string
	// RotateKey rotates the key pair
	RotateKey() error
	// GetLastRotation returns the last key rotation time
	GetLastRotation() time.Time
}

// VaultConfig holds the configuration for Vault integration
type VaultConfig struct {
	Address   string
	Token     string
	MountPath string
	KeyName   string
	Timeout   time.Duration
}

// LocalConfig holds the configuration for local key storage
type LocalConfig struct {
	KeyPath string
}

// TokenValidationOptions narrows which tokens a TokenSigner accepts
type TokenValidationOptions struct {
	Issuer   string
	Audience string
	// AllowExpired skips the exp check, used for id_token_hint
	AllowExpired bool
}

// TokenSigner signs the server's tokens and validates the ones it issued.
type TokenSigner interface {
	Sign(claims jwt.Claims) (string, error)
	// ValidateToken returns ErrTokenExpired or ErrInvalidToken on rejection
	ValidateToken(token string, opts TokenValidationOptions) (jwt.MapClaims, error)
}
