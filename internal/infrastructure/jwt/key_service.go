package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// DefaultClockSkew is the leeway applied to exp/nbf/iat checks
const DefaultClockSkew = 5 * time.Minute

// KeyService signs the server's tokens, validates them and publishes the key set.
// Keys retired by a rotation stay published and accepted until the process restarts.
type KeyService struct {
	strategy domain.JWTStrategy
	logger   *zap.Logger
	clock    domain.Clock

	mu      sync.RWMutex
	retired map[string]*rsa.PublicKey
	jwks    jwk.Set
}

// NewKeyService wraps a signing strategy
func NewKeyService(strategy domain.JWTStrategy, clock domain.Clock, logger *zap.Logger) *KeyService {
	return &KeyService{
		strategy: strategy,
		logger:   logger,
		clock:    clock,
		retired:  make(map[string]*rsa.PublicKey),
	}
}

// Sign signs claims with the active key
func (s *KeyService) Sign(claims jwt.Claims) (string, error) {
	token, err := s.strategy.Sign(claims)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err), zap.String("key_id", s.strategy.GetKeyID()))
		return "", domain.ErrTokenGeneration
	}
	return token, nil
}

// ValidationOptions narrows what ValidateToken accepts
type ValidationOptions = domain.TokenValidationOptions

// ValidateToken verifies a token this server issued and returns its claims
func (s *KeyService) ValidateToken(tokenString string, opts ValidationOptions) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{domain.SigningAlgorithm}),
		jwt.WithLeeway(DefaultClockSkew),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if opts.AllowExpired && onlyExpired(err) {
				return claims, nil
			}
			return nil, domain.ErrTokenExpired
		}
		s.logger.Debug("Token validation failed", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// onlyExpired reports whether expiry is the sole validation failure
func onlyExpired(err error) bool {
	for _, other := range []error{jwt.ErrTokenMalformed, jwt.ErrTokenSignatureInvalid, jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience, jwt.ErrTokenNotValidYet, jwt.ErrTokenUnverifiable} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

func (s *KeyService) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" || kid == s.strategy.GetKeyID() {
		if key := s.strategy.GetPublicKey(); key != nil {
			return key, nil
		}
		return nil, domain.ErrInvalidKeyConfig
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.retired[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown key id %q", kid)
}

// JWKS returns the public key set. It is rebuilt after every rotation.
func (s *KeyService) JWKS() (jwk.Set, error) {
	s.mu.RLock()
	if s.jwks != nil {
		set := s.jwks
		s.mu.RUnlock()
		return set, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	set := jwk.NewSet()
	current, err := publicJWK(s.strategy.GetPublicKey(), s.strategy.GetKeyID())
	if err != nil {
		return nil, err
	}
	if err := set.AddKey(current); err != nil {
		return nil, err
	}
	for kid, key := range s.retired {
		retired, err := publicJWK(key, kid)
		if err != nil {
			return nil, err
		}
		if err := set.AddKey(retired); err != nil {
			return nil, err
		}
	}
	s.jwks = set
	return set, nil
}

// RotateKeys moves to a new signing key and keeps the old one for validation
func (s *KeyService) RotateKeys() error {
	oldKID, oldKey := s.strategy.GetKeyID(), s.strategy.GetPublicKey()
	if err := s.strategy.RotateKey(); err != nil {
		s.logger.Error("Failed to rotate keys", zap.Error(err))
		return domain.ErrInvalidKeyConfig
	}

	s.mu.Lock()
	if oldKey != nil && oldKID != s.strategy.GetKeyID() {
		s.retired[oldKID] = oldKey
	}
	s.jwks = nil
	s.mu.Unlock()

	s.logger.Info("Signing key rotated",
		zap.String("key_id", s.strategy.GetKeyID()),
		zap.Time("rotation_time", s.strategy.GetLastRotation()))
	return nil
}

// KeyID returns the active key id
func (s *KeyService) KeyID() string {
	return s.strategy.GetKeyID()
}

func publicJWK(key *rsa.PublicKey, kid string) (jwk.Key, error) {
	if key == nil {
		return nil, domain.ErrInvalidKeyConfig
	}
	jwkKey, err := jwk.FromRaw(key)
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key: %w", err)
	}
	if err := jwkKey.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := jwkKey.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	if err := jwkKey.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}
	return jwkKey, nil
}
