package jwt

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/vault/api"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// vaultStrategy signs through the Vault transit engine; the private key never leaves Vault
type vaultStrategy struct {
	client       *api.Client
	config       *domain.VaultConfig
	logger       *zap.Logger
	publicKey    *rsa.PublicKey
	version      int
	keyID        string
	lastRotation time.Time
	mu           sync.RWMutex
}

// NewVaultStrategy connects to Vault and reads the latest transit key version
func NewVaultStrategy(config *domain.VaultConfig, logger *zap.Logger) (domain.JWTStrategy, error) {
	if config == nil || config.Address == "" {
		return nil, domain.ErrInvalidKeyConfig
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = config.Address
	vaultConfig.Timeout = config.Timeout

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyConfig, err)
	}
	client.SetToken(config.Token)

	strategy := &vaultStrategy{
		client:       client,
		config:       config,
		logger:       logger,
		lastRotation: time.Now(),
	}

	if err := strategy.refreshKey(); err != nil {
		return nil, err
	}
	return strategy, nil
}

func (v *vaultStrategy) keyPath() string {
	return fmt.Sprintf("%s/keys/%s", v.config.MountPath, v.config.KeyName)
}

// refreshKey loads the newest public key. Callers must not hold v.mu.
func (v *vaultStrategy) refreshKey() error {
	secret, err := v.client.Logical().Read(v.keyPath())
	if err != nil || secret == nil {
		v.logger.Error("failed to read transit key from vault", zap.Error(err))
		return domain.ErrInvalidKeyConfig
	}

	keys, ok := secret.Data["keys"].(map[string]interface{})
	if !ok {
		v.logger.Error("invalid key data from vault")
		return domain.ErrInvalidKeyConfig
	}

	var latest int
	for versionStr := range keys {
		if version, err := strconv.Atoi(versionStr); err == nil && version > latest {
			latest = version
		}
	}

	info, ok := keys[strconv.Itoa(latest)].(map[string]interface{})
	if !ok {
		return domain.ErrInvalidKeyConfig
	}
	publicKeyPEM, ok := info["public_key"].(string)
	if !ok {
		return domain.ErrInvalidKeyConfig
	}
	publicKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		v.logger.Error("failed to parse vault public key", zap.Error(err))
		return domain.ErrInvalidKeyConfig
	}

	v.mu.Lock()
	v.publicKey = publicKey
	v.version = latest
	v.keyID = fmt.Sprintf("vault-%s-%d", v.config.KeyName, latest)
	v.mu.Unlock()
	return nil
}

func (v *vaultStrategy) Sign(claims jwt.Claims) (string, error) {
	v.mu.RLock()
	keyID, publicKey := v.keyID, v.publicKey
	v.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID

	unsigned, err := token.SigningString()
	if err != nil {
		return "", domain.ErrTokenGeneration
	}

	path := fmt.Sprintf("%s/sign/%s/sha2-256", v.config.MountPath, v.config.KeyName)
	secret, err := v.client.Logical().Write(path, map[string]interface{}{
		"input":               base64.StdEncoding.EncodeToString([]byte(unsigned)),
		"signature_algorithm": "pkcs1v15",
	})
	if err != nil || secret == nil {
		v.logger.Error("failed to sign token with vault", zap.Error(err))
		return "", domain.ErrTokenGeneration
	}

	signature, ok := secret.Data["signature"].(string)
	if !ok {
		return "", domain.ErrInvalidSignature
	}
	// Strip the "vault:vN:" prefix
	if strings.HasPrefix(signature, "vault:v") {
		if parts := strings.SplitN(signature, ":", 3); len(parts) == 3 {
			signature = parts[2]
		}
	}

	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", domain.ErrInvalidSignature
	}

	hashed := sha256.Sum256([]byte(unsigned))
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hashed[:], raw); err != nil {
		v.logger.Error("vault signature does not match the published key", zap.Error(err))
		return "", domain.ErrInvalidSignature
	}

	return unsigned + "." + base64.RawURLEncoding.EncodeToString(raw), nil
}

func (v *vaultStrategy) GetPublicKey() *rsa.PublicKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.publicKey
}

func (v *vaultStrategy) GetKeyID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keyID
}

// RotateKey asks Vault for a new key version and starts signing with it
func (v *vaultStrategy) RotateKey() error {
	rotatePath := fmt.Sprintf("%s/keys/%s/rotate", v.config.MountPath, v.config.KeyName)
	if _, err := v.client.Logical().Write(rotatePath, nil); err != nil {
		v.logger.Error("failed to rotate key in vault", zap.Error(err))
		return domain.ErrInvalidKeyConfig
	}
	if err := v.refreshKey(); err != nil {
		return err
	}

	v.mu.Lock()
	v.lastRotation = time.Now()
	v.mu.Unlock()
	return nil
}

func (v *vaultStrategy) GetLastRotation() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastRotation
}

func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not RSA", parsed)
	}
	return key, nil
}
