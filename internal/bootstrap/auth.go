package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/marketbay/storefront/config"
	"github.com/marketbay/storefront/internal/adapters/devidp"
	"github.com/marketbay/storefront/internal/adapters/memcache"
	"github.com/marketbay/storefront/internal/adapters/oauthidp"
	"github.com/marketbay/storefront/internal/adapters/rediscache"
	"github.com/marketbay/storefront/internal/auth"
	"github.com/marketbay/storefront/internal/observability/statsd"
	"github.com/marketbay/storefront/internal/ports"
)

// CoordinatorConfig contains configuration for the session coordinator.
type CoordinatorConfig struct {
	Auth    config.AuthConfig
	Session config.SessionConfig
	Redis   config.RedisConfig

	// Roles is the role store backing the resolver, typically
	// pgroles.NewStore over the application's connection pool.
	Roles ports.RoleStore

	// RedisClient backs the durable cache tier. When nil the durable tier is
	// disabled and "remember me" degrades to session-only persistence.
	RedisClient redis.UniversalClient

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// BuildSessionCoordinator wires the coordinator and its collaborators from
// configuration. The caller owns the coordinator's lifecycle: call Start
// before serving and Close on shutdown.
func BuildSessionCoordinator(ctx context.Context, cfg CoordinatorConfig) (*auth.SessionCoordinator, error) {
	if cfg.Roles == nil {
		return nil, errors.New("role store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var durable ports.CacheStore
	if cfg.RedisClient != nil {
		durable = rediscache.NewStoreWithPrefix(cfg.RedisClient, cfg.Redis.KeyPrefix)
	} else {
		logger.Warn("durable cache tier disabled: redis client not configured")
	}

	cache := auth.NewTieredCache(auth.TieredCacheOptions{
		Volatile: memcache.New(),
		Durable:  durable,
		Logger:   logger,
	})

	resolver := auth.NewRoleResolver(auth.RoleResolverOptions{
		Store:   cfg.Roles,
		Logger:  logger,
		MemoTTL: cfg.Session.RoleMemoTTL,
	})

	return auth.NewSessionCoordinator(auth.CoordinatorOptions{
		Provider:       provider,
		Resolver:       resolver,
		Cache:          cache,
		Metrics:        cfg.Metrics,
		Logger:         logger,
		PersistTTL:     cfg.Session.PersistTTL,
		SuppressWindow: cfg.Session.SuppressWindow,
	}), nil
}

//nolint:ireturn // provider selection happens at runtime based on auth mode.
func buildProvider(ctx context.Context, cfg CoordinatorConfig) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		provider, err := devidp.NewProvider(devidp.Config{
			UserID:   cfg.Auth.DevAuth.UserID,
			Email:    cfg.Auth.DevAuth.Email,
			Password: cfg.Auth.DevAuth.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev identity provider: %w", err)
		}
		return provider, nil

	case config.AuthModeOAuth:
		provider, err := oauthidp.NewProvider(ctx, oauthidp.ProviderConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
			Scope:        cfg.Auth.OAuth.Scope,
			UserIDPath:   cfg.Auth.OAuth.UserIDClaim,
			EmailPath:    cfg.Auth.OAuth.EmailClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("create oauth identity provider: %w", err)
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Auth.Mode)
	}
}

// BuildMetrics creates the StatsD sink from observability configuration.
//
//nolint:ireturn // a disabled sink and a live client share the Sink interface.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	return client, nil
}
