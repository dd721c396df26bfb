package internal

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/apesoftware1/Memorial-sub001/internal/adapters/memory"
	postgres_adapter "github.com/apesoftware1/Memorial-sub001/internal/adapters/postgres"
	rabbitmq_adapter "github.com/apesoftware1/Memorial-sub001/internal/adapters/rabbitmq"
	redis_adapter "github.com/apesoftware1/Memorial-sub001/internal/adapters/redis"
	sqlite_adapter "github.com/apesoftware1/Memorial-sub001/internal/adapters/sqlite"
	"github.com/apesoftware1/Memorial-sub001/internal/configs"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/pkg/postgres"
	"github.com/apesoftware1/Memorial-sub001/pkg/rabbitmq/rabbitmq_common"
	redisclient "github.com/apesoftware1/Memorial-sub001/pkg/redis"
	"github.com/apesoftware1/Memorial-sub001/pkg/sqlite"
)

// Backends holds the origin key spaces, the inter-tab event bus and the
// clients behind them.
type Backends struct {
	Factory port.OriginStoreFactory
	Bus     port.StorageEventBusPort

	sqliteDB      *sqlx.DB
	dbPool        *pgxpool.Pool
	redisClient   *redis.Client
	rabbitManager *rabbitmq_common.ConnectionManager
}

// OpenBackends connects the storage and sync backends selected in cfg.
func OpenBackends(ctx context.Context, cfg *configs.AppConfig, baseLogger port.LoggerPort) (*Backends, error) {
	logger := baseLogger.WithFields(port.Fields{"component": "backends"})
	b := &Backends{}

	if cfg.Storage.Backend == configs.BackendRedis || cfg.Sync.Backend == configs.BackendRedis {
		client, err := redisclient.NewClient(ctx, redisclient.Config{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err != nil {
			logger.Error("Failed to connect to Redis", err, nil)
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		b.redisClient = client
		logger.Info("Connected to Redis", port.Fields{"addr": cfg.Storage.RedisAddr})
	}

	if err := b.openStorage(ctx, cfg, baseLogger); err != nil {
		b.Close(logger)
		return nil, err
	}
	if err := b.openBus(cfg, baseLogger); err != nil {
		b.Close(logger)
		return nil, err
	}

	logger.Info("Backends ready", port.Fields{"storage": cfg.Storage.Backend, "sync": cfg.Sync.Backend})
	return b, nil
}

func (b *Backends) openStorage(ctx context.Context, cfg *configs.AppConfig, baseLogger port.LoggerPort) error {
	quota := cfg.Storage.QuotaBytes

	switch cfg.Storage.Backend {
	case configs.BackendMemory:
		b.Factory = memory.NewStoreFactory(quota)

	case configs.BackendSQLite:
		db, err := sqlite.NewClient(ctx, sqlite.Config{Path: cfg.Storage.SQLitePath})
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		b.sqliteDB = db
		b.Factory = sqlite_adapter.NewStoreFactory(db, quota, baseLogger)

	case configs.BackendPostgres:
		pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: cfg.Storage.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		b.dbPool = pool
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		b.Factory = postgres_adapter.NewStoreFactory(pool, quota)

	case configs.BackendRedis:
		b.Factory = redis_adapter.NewStoreFactory(b.redisClient, quota, baseLogger)

	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (b *Backends) openBus(cfg *configs.AppConfig, baseLogger port.LoggerPort) error {
	switch cfg.Sync.Backend {
	case configs.BackendMemory:
		b.Bus = memory.NewEventBus(baseLogger)

	case configs.BackendRedis:
		bus, err := redis_adapter.NewEventBus(b.redisClient, baseLogger)
		if err != nil {
			return err
		}
		b.Bus = bus

	case configs.BackendRabbitMQ:
		manager, err := rabbitmq_common.NewConnectionManager(
			rabbitmq_common.Config{URL: cfg.Sync.RabbitMQURL},
			rabbitmq_adapter.NewPkgLoggerBridge(baseLogger),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		b.rabbitManager = manager
		bus, err := rabbitmq_adapter.NewEventBus(manager, cfg.Sync.Exchange, baseLogger)
		if err != nil {
			return err
		}
		b.Bus = bus

	default:
		return fmt.Errorf("unknown sync backend %q", cfg.Sync.Backend)
	}
	return nil
}

// Close releases the bus first, then the clients it may use.
func (b *Backends) Close(logger port.LoggerPort) {
	if b.Bus != nil {
		if err := b.Bus.Close(); err != nil {
			logger.Error("Error closing event bus", err, nil)
		}
	}
	if b.rabbitManager != nil {
		if err := b.rabbitManager.Close(); err != nil {
			logger.Error("Error closing RabbitMQ connection", err, nil)
		}
	}
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			logger.Error("Error closing Redis client", err, nil)
		}
	}
	if b.dbPool != nil {
		b.dbPool.Close()
		logger.Info("PostgreSQL pool closed.", nil)
	}
	if b.sqliteDB != nil {
		if err := b.sqliteDB.Close(); err != nil {
			logger.Error("Error closing SQLite database", err, nil)
		}
	}
}
