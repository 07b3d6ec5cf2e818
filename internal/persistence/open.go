// Package persistence selects and opens the configured activity store.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"example.com/activities/internal/config"
	"example.com/activities/internal/domain"
	"example.com/activities/internal/persistence/memory"
	"example.com/activities/internal/persistence/mongostore"
	"example.com/activities/internal/persistence/postgres"
)

// Store is an activity repository that can also provision user profiles.
type Store interface {
	domain.ActivityRepository
	UpsertUser(ctx context.Context, userID, username string) error
}

// Backend holds an opened store and the driver handles behind it.
type Backend struct {
	Driver string
	Store  Store
	// Pool is set for the postgres driver only; the outbox dispatcher runs on it.
	Pool   *pgxpool.Pool
	client *mongo.Client
}

// Open connects to the store selected by cfg.StoreDriver. Postgres schema
// migrations and Mongo indexes are applied before returning.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres store ready")
		return &Backend{Driver: cfg.StoreDriver, Store: postgres.NewRepository(pool), Pool: pool}, nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURL)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		store := mongostore.NewStore(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("mongo store ready", zap.String("database", cfg.MongoDatabase))
		return &Backend{Driver: cfg.StoreDriver, Store: store, client: client}, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &Backend{Driver: cfg.StoreDriver, Store: memory.NewStore()}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Close releases driver resources.
func (b *Backend) Close(ctx context.Context) error {
	var errs error
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.client != nil {
		errs = errors.Join(errs, b.client.Disconnect(ctx))
	}
	return errs
}
