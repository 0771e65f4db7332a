package jwt

import (
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// CompositeStrategy prefers Vault and falls back to the local key when Vault fails
type CompositeStrategy struct {
	vaultStrategy domain.JWTStrategy
	localStrategy domain.JWTStrategy
	logger        *zap.Logger
	useVault      bool
	mu            sync.RWMutex
}

// NewCompositeStrategy creates a strategy that starts on Vault when one is given
func NewCompositeStrategy(vaultStrategy, localStrategy domain.JWTStrategy, logger *zap.Logger) *CompositeStrategy {
	return &CompositeStrategy{
		vaultStrategy: vaultStrategy,
		localStrategy: localStrategy,
		logger:        logger,
		useVault:      vaultStrategy != nil,
	}
}

func (c *CompositeStrategy) current() domain.JWTStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.useVault && c.vaultStrategy != nil {
		return c.vaultStrategy
	}
	return c.localStrategy
}

func (c *CompositeStrategy) fallback(op string, err error) {
	c.logger.Warn("Vault "+op+" failed, falling back to local key", zap.Error(err))
	c.mu.Lock()
	c.useVault = false
	c.mu.Unlock()
}

// UsingVault reports whether Vault is the active signer
func (c *CompositeStrategy) UsingVault() bool {
	return c.current() == c.vaultStrategy && c.vaultStrategy != nil
}

func (c *CompositeStrategy) Sign(claims jwt.Claims) (string, error) {
	strategy := c.current()
	token, err := strategy.Sign(claims)
	if err == nil || strategy == c.localStrategy {
		return token, err
	}
	c.fallback("sign", err)
	return c.localStrategy.Sign(claims)
}

func (c *CompositeStrategy) GetPublicKey() *rsa.PublicKey {
	if key := c.current().GetPublicKey(); key != nil {
		return key
	}
	c.fallback("public key lookup", errors.New("no public key"))
	return c.localStrategy.GetPublicKey()
}

func (c *CompositeStrategy) GetKeyID() string {
	return c.current().GetKeyID()
}

func (c *CompositeStrategy) RotateKey() error {
	strategy := c.current()
	err := strategy.RotateKey()
	if err == nil || strategy == c.localStrategy {
		return err
	}
	c.fallback("rotation", err)
	return c.localStrategy.RotateKey()
}

func (c *CompositeStrategy) GetLastRotation() time.Time {
	return c.current().GetLastRotation()
}

// TryVault switches back to Vault once it serves a public key again
func (c *CompositeStrategy) TryVault() error {
	if c.vaultStrategy == nil || c.vaultStrategy.GetPublicKey() == nil {
		return errors.New("vault is not available")
	}
	c.mu.Lock()
	c.useVault = true
	c.mu.Unlock()
	c.logger.Info("Switched back to Vault signing")
	return nil
}
