package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	cacheadapter "github.com/smallbiznis/adsbridge/internal/adapter/cache"
	"github.com/smallbiznis/adsbridge/internal/config"
	"github.com/smallbiznis/adsbridge/internal/repository"
)

const connectTimeout = 10 * time.Second

// CloseFunc releases a store connection.
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// OpenStore connects the credential store selected by cfg.StoreDriver.
// Postgres migrations run first when MigrateOnStart is set.
func OpenStore(ctx context.Context, cfg config.Config, node *snowflake.Node, logger *zap.Logger) (repository.CredentialRepository, CloseFunc, error) {
	if logger == nil {
		logger = zap.L()
	}
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg, node, logger)
	case config.StoreDriverMongo:
		return openMongo(ctx, cfg, node, logger)
	case config.StoreDriverMemory:
		logger.Warn("using in-memory credential store; credentials are lost on restart")
		return repository.NewMemoryCredentialRepo(node), noopClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config, node *snowflake.Node, logger *zap.Logger) (repository.CredentialRepository, CloseFunc, error) {
	if cfg.MigrateOnStart {
		if err := repository.NewMigrator(cfg.DatabaseURL, logger).Up(); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("credential store ready", zap.String("driver", config.StoreDriverPostgres))
	return repository.NewPostgresCredentialRepo(pool, node), func(context.Context) error {
		pool.Close()
		return nil
	}, nil
}

func openMongo(ctx context.Context, cfg config.Config, node *snowflake.Node, logger *zap.Logger) (repository.CredentialRepository, CloseFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	repo := repository.NewMongoCredentialRepo(client.Database(cfg.MongoDatabase), node)
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	logger.Info("credential store ready",
		zap.String("driver", config.StoreDriverMongo),
		zap.String("database", cfg.MongoDatabase),
	)
	return repo, client.Disconnect, nil
}

// OpenCache connects the Redis credential cache. A nil cache is returned when
// REDIS_ADDR is unset.
func OpenCache(ctx context.Context, cfg config.Config) (repository.CredentialCache, CloseFunc, error) {
	if cfg.RedisAddr == "" {
		return nil, noopClose, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return cacheadapter.NewRedisCredentialCache(client), func(context.Context) error {
		return client.Close()
	}, nil
}

// WithCache wraps repo with the read-through cache when one is configured.
func WithCache(repo repository.CredentialRepository, cache repository.CredentialCache, cfg config.Config, logger *zap.Logger) repository.CredentialRepository {
	if cache == nil || cfg.CredentialCacheTTL <= 0 {
		return repo
	}
	return repository.NewCachedCredentialRepo(repo, cache, cfg.CredentialCacheTTL, logger)
}
