package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/observer-server/internal/model"
)

type Connection struct {
	*pgxpool.Pool
	store model.StoreName
}

func NewConnection(ctx context.Context, store model.StoreName, dsn string) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn for store %s: %w", store, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool for store %s: %w", store, err)
	}

	return &Connection{
		Pool:  pool,
		store: store,
	}, nil
}

// Store names the partition this connection serves.
func (s *Connection) Store() model.StoreName {
	return s.store
}

// DB exposes the pool through database/sql for tools that need it.
func (s *Connection) DB() *sql.DB {
	return stdlib.OpenDBFromPool(s.Pool)
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}

// Stores holds one connection per routed store.
type Stores map[model.StoreName]*Connection

// OpenStores connects to every store concurrently. Every routed store must
// have a DSN; a partial set is closed again on failure.
func OpenStores(ctx context.Context, routed []model.StoreName, dsns map[model.StoreName]string) (Stores, error) {
	for _, store := range routed {
		if dsns[store] == "" {
			return nil, model.NewConfigurationError("postgres", "store %q has no dsn", store)
		}
	}

	conns := make([]*Connection, len(routed))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range routed {
		g.Go(func() error {
			conn, err := NewConnection(gctx, store, dsns[store])
			if err != nil {
				return err
			}
			conns[i] = conn
			if err := conn.Ping(gctx); err != nil {
				return fmt.Errorf("failed to ping store %s: %w", store, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, conn := range conns {
			if conn != nil {
				_ = conn.Close()
			}
		}
		return nil, err
	}
	stores := make(Stores, len(routed))
	for _, conn := range conns {
		stores[conn.store] = conn
	}
	return stores, nil
}

// Ping checks every store concurrently.
func (s Stores) Ping(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for store, conn := range s {
		g.Go(func() error {
			if err := conn.Ping(gctx); err != nil {
				return fmt.Errorf("store %s: %w", store, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s Stores) Close() {
	for _, conn := range s {
		_ = conn.Close()
	}
}
