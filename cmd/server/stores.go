package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/dayflow/internal/config"
	"github.com/fastygo/dayflow/internal/infrastructure/boltdb"
	"github.com/fastygo/dayflow/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/dayflow/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/dayflow/internal/infrastructure/redis"
	"github.com/fastygo/dayflow/internal/services/lifecycle"
	"github.com/fastygo/dayflow/repository"
	boltRepo "github.com/fastygo/dayflow/repository/bolt"
	"github.com/fastygo/dayflow/repository/memory"
	pgRepo "github.com/fastygo/dayflow/repository/postgres"
	redisRepo "github.com/fastygo/dayflow/repository/redis"
)

type stores struct {
	tasks     repository.TaskStore
	templates repository.TemplateStore
	sessions  repository.SessionRepository
}

// openStores connects the configured backend, registers its health probes
// and its shutdown hooks.
func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, mon *monitor.Monitor, logger *zap.Logger) (*stores, error) {
	ttl := cfg.JWT.SessionTTL

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return &stores{
			tasks:     memory.NewTaskStore(),
			templates: memory.NewTemplateStore(),
			sessions:  memory.NewSessionRepository(),
		}, nil

	case config.BackendLocal:
		db, err := boltdb.Open(cfg.Store.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		manager.Register("boltdb", func(context.Context) error { return db.Close() })
		mon.Register("boltdb", func(context.Context) error { return boltdb.Ping(db) })
		logger.Info("local store opened", zap.String("path", cfg.Store.LocalPath))
		return &stores{
			tasks:     boltRepo.NewTaskStore(db, logger),
			templates: boltRepo.NewTemplateStore(db),
			sessions:  boltRepo.NewSessionRepository(db, ttl),
		}, nil

	case config.BackendRedis:
		client, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		manager.Register("redis", func(context.Context) error { return client.Close() })
		mon.Register("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
		return &stores{
			tasks:     redisRepo.NewTaskStore(client, logger),
			templates: redisRepo.NewTemplateStore(client),
			sessions:  redisRepo.NewSessionRepository(client, ttl),
		}, nil

	case config.BackendPostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		manager.Register("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		mon.Register("postgresql", func(ctx context.Context) error { return pool.Ping(ctx) })

		client, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		manager.Register("redis", func(context.Context) error { return client.Close() })
		mon.Register("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })

		return &stores{
			tasks:     pgRepo.NewTaskStore(pool, logger),
			templates: redisRepo.NewTemplateStore(client),
			sessions:  redisRepo.NewSessionRepository(client, ttl),
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
