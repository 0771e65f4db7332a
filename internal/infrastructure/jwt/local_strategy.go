package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// localStrategy signs with an RSA key kept in a PEM file
type localStrategy struct {
	privateKey   *rsa.PrivateKey
	config       *domain.LocalConfig
	logger       *zap.Logger
	keyID        string
	lastRotation time.Time
	mu           sync.RWMutex
}

// NewLocalStrategy loads the signing key from config.KeyPath, generating it on first start
func NewLocalStrategy(config *domain.LocalConfig, logger *zap.Logger) (domain.JWTStrategy, error) {
	if config == nil || config.KeyPath == "" {
		return nil, domain.ErrInvalidKeyConfig
	}

	strategy := &localStrategy{
		config:       config,
		logger:       logger,
		lastRotation: time.Now(),
	}

	key, err := strategy.loadKey()
	if err != nil {
		logger.Info("No usable signing key found, generating one", zap.String("path", config.KeyPath))
		if key, err = strategy.generateKey(); err != nil {
			return nil, domain.ErrInvalidKeyConfig
		}
	}
	strategy.privateKey = key
	strategy.keyID = generateKeyID(&key.PublicKey)

	return strategy, nil
}

func (l *localStrategy) loadKey() (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(l.config.KeyPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, domain.ErrInvalidKeyConfig
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, domain.ErrInvalidKeyConfig
		}
		return key, nil
	default:
		return nil, domain.ErrInvalidKeyConfig
	}
}

// generateKey creates a fresh key and persists it next to the configured path
func (l *localStrategy) generateKey() (*rsa.PrivateKey, error) {
	if err := os.MkdirAll(filepath.Dir(l.config.KeyPath), 0700); err != nil {
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, domain.RSAKeySize)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(l.config.KeyPath, keyPEM, 0600); err != nil {
		return nil, err
	}
	return key, nil
}

func (l *localStrategy) Sign(claims jwt.Claims) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = l.keyID

	signed, err := token.SignedString(l.privateKey)
	if err != nil {
		l.logger.Error("failed to sign token", zap.Error(err))
		return "", domain.ErrTokenGeneration
	}
	return signed, nil
}

func (l *localStrategy) GetPublicKey() *rsa.PublicKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &l.privateKey.PublicKey
}

func (l *localStrategy) GetKeyID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keyID
}

// RotateKey replaces the key on disk with a new one
func (l *localStrategy) RotateKey() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, err := l.generateKey()
	if err != nil {
		l.logger.Error("failed to rotate signing key", zap.Error(err))
		return domain.ErrInvalidKeyConfig
	}
	l.privateKey = key
	l.keyID = generateKeyID(&key.PublicKey)
	l.lastRotation = time.Now()
	return nil
}

func (l *localStrategy) GetLastRotation() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRotation
}

// generateKeyID derives a stable kid from the public key
func generateKeyID(key *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		der = key.N.Bytes()
	}
	hash := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(hash[:16])
}
