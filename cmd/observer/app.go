package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/observer-server/database"
	"github.com/dtroode/observer-server/internal/config"
	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/repository/postgres"
	"github.com/dtroode/observer-server/internal/router"
	"github.com/dtroode/observer-server/internal/tier"
)

// topology is the store layout every command starts from.
type topology struct {
	router *router.Router
	engine *tier.Engine
	stores postgres.Stores
}

func openTopology(ctx context.Context, cfg *config.Config) (*topology, error) {
	catalog := router.DefaultCatalog()
	resources := tier.DefaultResources()
	required := make([]model.EntityType, 0, len(resources))
	for _, res := range resources {
		required = append(required, res.Entity)
	}

	r, err := router.New(catalog, required...)
	if err != nil {
		return nil, err
	}
	engine, err := tier.NewEngine(r, resources...)
	if err != nil {
		return nil, err
	}
	stores, err := postgres.OpenStores(ctx, catalog.Stores(), cfg.Database.DSNs())
	if err != nil {
		return nil, err
	}
	return &topology{router: r, engine: engine, stores: stores}, nil
}

func (t *topology) identity() *postgres.Connection {
	return t.stores[model.StoreIdentity]
}

// resourceStores exposes every opened store to the tier engine.
func (t *topology) resourceStores() map[model.StoreName]model.ResourceStore {
	out := make(map[model.StoreName]model.ResourceStore, len(t.stores))
	for name, conn := range t.stores {
		out[name] = postgres.NewResourceRepository(conn)
	}
	return out
}

// migrate applies every module routed to each opened store.
func (t *topology) migrate(ctx context.Context, lg *logger.Logger) error {
	for name, conn := range t.stores {
		db := conn.DB()
		plan, err := database.Migrate(ctx, db, name, t.router)
		_ = db.Close()
		if err != nil {
			return fmt.Errorf("failed to migrate store %q: %w", name, err)
		}
		lg.Info("Migrations applied",
			"store", string(name),
			"modules", plan.Apply,
			"skipped", plan.Skipped)
	}
	return nil
}

func redisOpts(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
