package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/marketbay/storefront/config"
	"github.com/marketbay/storefront/internal/adapters/pgroles"
	"github.com/marketbay/storefront/internal/auth"
	"github.com/marketbay/storefront/internal/bootstrap"
	"github.com/marketbay/storefront/internal/devseed"
	"github.com/marketbay/storefront/internal/migrate"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting storefront auth service",
		"auth_mode", string(cfg.Auth.Mode),
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"redis_addr", cfg.Redis.Addr,
		"dev", cfg.IsDev,
	)

	pool, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err := migrate.Run(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.InfoContext(ctx, "database migrations completed")
	}

	roleStore := pgroles.NewStore(pool)
	if cfg.IsDev {
		if err := devseed.Run(ctx, roleStore, logger); err != nil {
			logger.WarnContext(ctx, "development role seeding failed", "error", err)
		}
	}

	metrics, err := bootstrap.BuildMetrics(cfg.Observability.Metrics, logger)
	if err != nil {
		return err
	}

	coordinator, err := bootstrap.BuildSessionCoordinator(ctx, bootstrap.CoordinatorConfig{
		Auth:        cfg.Auth,
		Session:     cfg.Session,
		Redis:       cfg.Redis,
		Roles:       roleStore,
		RedisClient: redisClient,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build session coordinator: %w", err)
	}
	defer coordinator.Close()

	coordinator.Subscribe(func(snap auth.Snapshot) {
		logger.InfoContext(ctx, "session state changed",
			"state", snap.State.String(),
			"readiness", snap.Readiness.String(),
			"authenticated", snap.IsAuthenticated,
			"role", string(snap.Role),
		)
	})

	if err := coordinator.Start(ctx); err != nil {
		if errors.Is(err, auth.ErrProviderUnavailable) {
			// Recoverable: the coordinator settled signed out and is ready.
			logger.WarnContext(ctx, "startup restoration degraded", "error", err)
		} else {
			return fmt.Errorf("start session coordinator: %w", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.InfoContext(ctx, "shutting down", "signal", sig.String())
	return nil
}

// initInfrastructure connects shared dependencies used by the coordinator.
//
//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*pgxpool.Pool, redis.UniversalClient, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	pool, err := bootstrap.ConnectPostgres(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		// The durable tier is an optimization: run without it rather than
		// refuse to start.
		logger.WarnContext(ctx, "redis unavailable, durable cache tier disabled", "error", err)
		return pool, nil, nil
	}

	return pool, redisClient, nil
}
