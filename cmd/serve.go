package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/config"
	"github.com/manorfm/identityserver/internal/infrastructure/database"
	eventsinks "github.com/manorfm/identityserver/internal/infrastructure/events"
	"github.com/manorfm/identityserver/internal/infrastructure/httpclient"
	"github.com/manorfm/identityserver/internal/infrastructure/jwt"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/manorfm/identityserver/internal/infrastructure/redisstore"
	"github.com/manorfm/identityserver/internal/infrastructure/repository"
	"github.com/manorfm/identityserver/internal/infrastructure/seed"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	httprouter "github.com/manorfm/identityserver/internal/interfaces/http"
	"github.com/manorfm/identityserver/internal/interfaces/http/middleware/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	redisKeyPrefix   = "idsrv:"
	visitorTTL       = 3 * time.Minute
	shutdownTimeout  = 30 * time.Second
	sessionCookieKey = "idsrv"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the identity server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := domain.SystemClock{}
	options := cfg.Options()

	static, err := loadSeed(cfg)
	if err != nil {
		return err
	}

	stores, closeStores, err := openStores(ctx, cfg, static, clock, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	if err := static.Apply(ctx, stores.Clients, stores.Users, logger); err != nil {
		return fmt.Errorf("failed to apply seed: %w", err)
	}

	cleanup := grants.NewCleanupService(cfg.GrantCleanupInterval, clock, logger, expiredRemovers(stores)...)
	go cleanup.Run(ctx)

	keys, err := newKeyService(cfg, clock, logger)
	if err != nil {
		return err
	}

	sinks := []domain.EventSink{eventsinks.NewLogSink(logger)}
	if cfg.AMQPURL != "" {
		amqpSink, err := eventsinks.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to event broker: %w", err)
		}
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}

	var blockKey []byte
	if cfg.SessionBlockKey != "" {
		blockKey = []byte(cfg.SessionBlockKey)
	}
	sessions := session.NewManager(session.Config{
		CookieName: sessionCookieKey,
		HashKey:    []byte(cfg.SessionHashKey),
		BlockKey:   blockKey,
		Lifetime:   cfg.CookieLifetime,
		Secure:     cfg.SessionSecure,
	}, clock, logger)

	limiter := ratelimit.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, visitorTTL, logger)
	go limiter.Run(ctx)

	router := httprouter.NewRouter(httprouter.Dependencies{
		Stores:      stores,
		Keys:        keys,
		Sessions:    sessions,
		Events:      events.NewService(options.Events, clock, logger, sinks...),
		Poster:      httpclient.New(cfg.BackChannelLogoutTimeout, logger),
		RateLimiter: limiter,
		Clock:       clock,
		Options:     options,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.Int("port", cfg.ServerPort),
			zap.String("issuer", cfg.IssuerURI),
			zap.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited properly")
	return nil
}

func loadSeed(cfg *config.Config) (*seed.Seed, error) {
	if cfg.SeedFile == "" {
		return &seed.Seed{IdentityResources: domain.StandardIdentityResources()}, nil
	}
	static, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed file: %w", err)
	}
	return static, nil
}

// openStores builds the persistence backends for cfg.StoreBackend. Resources always come from the seed.
func openStores(ctx context.Context, cfg *config.Config, static *seed.Seed, clock domain.Clock,
	logger *zap.Logger) (httprouter.Stores, func(), error) {
	stores := httprouter.Stores{
		Clients:   memory.NewClientStore(nil),
		Resources: memory.NewResourceStore(static.IdentityResources, static.ApiScopes, static.ApiResources),
		Users:     memory.NewUserStore(nil),
		Grants:    memory.NewPersistedGrantStore(),
		Devices:   memory.NewDeviceFlowStore(),
		Cache:     memory.NewCache(clock),
	}

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.NewPostgres(ctx, cfg, logger)
		if err != nil {
			return stores, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return stores, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		stores.Clients = repository.NewClientRepository(db, logger)
		stores.Users = repository.NewUserRepository(db, logger)
		stores.Grants = repository.NewPersistedGrantRepository(db, logger)
		stores.Devices = repository.NewDeviceFlowRepository(db, logger)
		stores.Ping = db.Ping
		return stores, db.Close, nil

	case config.StoreBackendRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return stores, nil, err
		}
		stores.Grants = redisstore.NewPersistedGrantStore(client, redisKeyPrefix, clock, logger)
		stores.Devices = redisstore.NewDeviceFlowStore(client, redisKeyPrefix)
		stores.Cache = redisstore.NewCache(client, redisKeyPrefix)
		stores.Ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		logger.Info("Connected to Redis")
		return stores, func() { _ = client.Close() }, nil
	}

	logger.Warn("Using in-memory stores, grants are lost on restart")
	return stores, func() {}, nil
}

// expiredRemovers returns the stores that need sweeping, Redis expires its keys itself
func expiredRemovers(stores httprouter.Stores) []domain.ExpiredRemover {
	var removers []domain.ExpiredRemover
	for _, store := range []interface{}{stores.Grants, stores.Devices} {
		if remover, ok := store.(domain.ExpiredRemover); ok {
			removers = append(removers, remover)
		}
	}
	return removers
}

// newKeyService signs with Vault transit when configured and falls back to the local key
func newKeyService(cfg *config.Config, clock domain.Clock, logger *zap.Logger) (*jwt.KeyService, error) {
	local, err := jwt.NewLocalStrategy(&domain.LocalConfig{KeyPath: cfg.SigningKeyPath}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	strategy := local
	if cfg.VaultEnabled() {
		vault, err := jwt.NewVaultStrategy(&domain.VaultConfig{
			Address:   cfg.VaultAddress,
			Token:     cfg.VaultToken,
			MountPath: cfg.VaultMountPath,
			KeyName:   cfg.VaultKeyName,
			Timeout:   cfg.VaultTimeout,
		}, logger)
		if err != nil {
			logger.Warn("Vault signing unavailable, using local key", zap.Error(err))
		} else {
			strategy = jwt.NewCompositeStrategy(vault, local, logger)
		}
	}
	return jwt.NewKeyService(strategy, clock, logger), nil
}
