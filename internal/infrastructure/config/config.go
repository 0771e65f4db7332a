package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/manorfm/identityserver/internal/domain"
)

// Store backends
const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	Environment string `validate:"oneof=development production test"`
	ServerPort  int    `validate:"min=1,max=65535"`
	IssuerURI   string `validate:"required,url"`

	// Storage configuration
	StoreBackend   string `validate:"oneof=memory postgres redis"`
	DBHost         string `validate:"required_if=StoreBackend postgres"`
	DBPort         int    `validate:"min=1,max=65535"`
	DBUser         string
	DBPassword     string
	DBName         string `validate:"required_if=StoreBackend postgres"`
	MigrationsPath string
	RedisURL       string `validate:"required_if=StoreBackend redis"`
	SeedFile       string

	// Signing key configuration
	SigningKeyPath string `validate:"required"`
	VaultAddress   string
	VaultToken     string
	VaultMountPath string
	VaultKeyName   string
	VaultTimeout   time.Duration

	// Session configuration
	SessionHashKey  string `validate:"required,min=32"`
	SessionBlockKey string `validate:"omitempty,len=32"`
	SessionSecure   bool
	CookieLifetime  time.Duration `validate:"gt=0"`

	// User interaction
	LoginURL              string `validate:"required"`
	ConsentURL            string `validate:"required"`
	DeviceVerificationURL string `validate:"required"`
	LogoutURL             string

	// Device flow
	DevicePollingInterval time.Duration `validate:"gt=0"`
	UserCodeType          string        `validate:"oneof=Numeric Alphanumeric"`
	UserCodeLength        int           `validate:"min=6,max=32"`

	// Expired grant and device code removal
	GrantCleanupInterval time.Duration `validate:"gt=0"`

	// Logout
	BackChannelLogoutTimeout     time.Duration `validate:"gt=0"`
	BackChannelLogoutConcurrency int           `validate:"min=1"`

	// Events
	AMQPURL                string
	AMQPExchange           string
	RaiseSuccessEvents     bool
	RaiseFailureEvents     bool
	RaiseInformationEvents bool
	RaiseErrorEvents       bool

	// Rate limiting
	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"min=1"`

	EmitStaticAudienceClaim bool
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Environment:                  "development",
		ServerPort:                   8080,
		IssuerURI:                    "http://localhost:8080",
		StoreBackend:                 StoreBackendMemory,
		DBPort:                       5432,
		MigrationsPath:               "migrations",
		SigningKeyPath:               "keys/signing.pem",
		VaultMountPath:               "transit",
		VaultKeyName:                 "identityserver-signing-key",
		VaultTimeout:                 5 * time.Second,
		CookieLifetime:               10 * time.Hour,
		LoginURL:                     "/account/login",
		ConsentURL:                   "/consent",
		DeviceVerificationURL:        "/device",
		LogoutURL:                    "/account/logout",
		DevicePollingInterval:        5 * time.Second,
		UserCodeType:                 domain.DefaultUserCodeType,
		UserCodeLength:               8,
		GrantCleanupInterval:         time.Hour,
		BackChannelLogoutTimeout:     10 * time.Second,
		BackChannelLogoutConcurrency: 8,
		AMQPExchange:                 "identityserver.events",
		RaiseSuccessEvents:           true,
		RaiseFailureEvents:           true,
		RaiseErrorEvents:             true,
		RateLimitRPS:                 20,
		RateLimitBurst:               40,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := loadAWSSecretsIntoEnv(); err != nil {
		fmt.Printf("Skipping AWS Secrets Manager load: %v\n", err)
	}

	// Load .env from project root
	_ = godotenv.Load()

	cfg := NewConfig()
	var err error

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	if cfg.ServerPort, err = strconv.Atoi(getEnv("PORT", strconv.Itoa(cfg.ServerPort))); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.IssuerURI = strings.TrimSuffix(getEnv("ISSUER_URI", cfg.IssuerURI), "/")

	cfg.StoreBackend = getEnv("STORE_BACKEND", cfg.StoreBackend)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	if cfg.DBPort, err = strconv.Atoi(getEnv("DB_PORT", strconv.Itoa(cfg.DBPort))); err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.MigrationsPath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SeedFile = getEnv("SEED_FILE", cfg.SeedFile)

	cfg.SigningKeyPath = getEnv("SIGNING_KEY_PATH", cfg.SigningKeyPath)
	cfg.VaultAddress = getEnv("VAULT_ADDRESS", cfg.VaultAddress)
	cfg.VaultToken = getEnv("VAULT_TOKEN", cfg.VaultToken)
	cfg.VaultMountPath = getEnv("VAULT_MOUNT_PATH", cfg.VaultMountPath)
	cfg.VaultKeyName = getEnv("VAULT_KEY_NAME", cfg.VaultKeyName)
	if cfg.VaultTimeout, err = getEnvDuration("VAULT_TIMEOUT", cfg.VaultTimeout); err != nil {
		return nil, err
	}

	cfg.SessionHashKey = getEnv("SESSION_HASH_KEY", cfg.SessionHashKey)
	cfg.SessionBlockKey = getEnv("SESSION_BLOCK_KEY", cfg.SessionBlockKey)
	cfg.SessionSecure = getEnvBool("SESSION_SECURE", cfg.SessionSecure)
	if cfg.CookieLifetime, err = getEnvDuration("COOKIE_LIFETIME", cfg.CookieLifetime); err != nil {
		return nil, err
	}

	cfg.LoginURL = getEnv("LOGIN_URL", cfg.LoginURL)
	cfg.ConsentURL = getEnv("CONSENT_URL", cfg.ConsentURL)
	cfg.DeviceVerificationURL = getEnv("DEVICE_VERIFICATION_URL", cfg.DeviceVerificationURL)
	cfg.LogoutURL = getEnv("LOGOUT_URL", cfg.LogoutURL)

	if cfg.DevicePollingInterval, err = getEnvDuration("DEVICE_POLLING_INTERVAL", cfg.DevicePollingInterval); err != nil {
		return nil, err
	}
	cfg.UserCodeType = getEnv("USER_CODE_TYPE", cfg.UserCodeType)
	cfg.UserCodeLength = getEnvInt("USER_CODE_LENGTH", cfg.UserCodeLength)
	if cfg.GrantCleanupInterval, err = getEnvDuration("GRANT_CLEANUP_INTERVAL", cfg.GrantCleanupInterval); err != nil {
		return nil, err
	}

	if cfg.BackChannelLogoutTimeout, err = getEnvDuration("BACKCHANNEL_LOGOUT_TIMEOUT", cfg.BackChannelLogoutTimeout); err != nil {
		return nil, err
	}
	cfg.BackChannelLogoutConcurrency = getEnvInt("BACKCHANNEL_LOGOUT_CONCURRENCY", cfg.BackChannelLogoutConcurrency)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.RaiseSuccessEvents = getEnvBool("RAISE_SUCCESS_EVENTS", cfg.RaiseSuccessEvents)
	cfg.RaiseFailureEvents = getEnvBool("RAISE_FAILURE_EVENTS", cfg.RaiseFailureEvents)
	cfg.RaiseInformationEvents = getEnvBool("RAISE_INFORMATION_EVENTS", cfg.RaiseInformationEvents)
	cfg.RaiseErrorEvents = getEnvBool("RAISE_ERROR_EVENTS", cfg.RaiseErrorEvents)

	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", strconv.FormatFloat(cfg.RateLimitRPS, 'f', -1, 64)), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.EmitStaticAudienceClaim = getEnvBool("EMIT_STATIC_AUDIENCE_CLAIM", cfg.EmitStaticAudienceClaim)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Options converts the configuration into protocol options
func (c *Config) Options() domain.Options {
	opts := domain.DefaultOptions(c.IssuerURI)
	opts.UserInteraction.LoginURL = c.LoginURL
	opts.UserInteraction.ConsentURL = c.ConsentURL
	opts.UserInteraction.DeviceVerificationURL = c.DeviceVerificationURL
	opts.UserInteraction.LogoutURL = c.LogoutURL
	opts.DeviceFlow.Interval = c.DevicePollingInterval
	opts.DeviceFlow.DefaultUserCodeType = c.UserCodeType
	opts.DeviceFlow.UserCodeLength = c.UserCodeLength
	opts.Logout.BackChannelLogoutTimeout = c.BackChannelLogoutTimeout
	opts.Logout.BackChannelLogoutConcurrency = c.BackChannelLogoutConcurrency
	opts.Events = domain.EventsOptions{
		RaiseSuccessEvents:     c.RaiseSuccessEvents,
		RaiseFailureEvents:     c.RaiseFailureEvents,
		RaiseInformationEvents: c.RaiseInformationEvents,
		RaiseErrorEvents:       c.RaiseErrorEvents,
	}
	opts.Authentication.CookieLifetime = c.CookieLifetime
	opts.EmitStaticAudienceClaim = c.EmitStaticAudienceClaim
	return opts
}

// VaultEnabled reports whether a Vault signing backend is configured
func (c *Config) VaultEnabled() bool {
	return c.VaultAddress != "" && c.VaultToken != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
