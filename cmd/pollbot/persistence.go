package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v7"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/ext/persistence"
	"gitlab.com/yelinaung/tgbot/internal/config"
	"gitlab.com/yelinaung/tgbot/internal/database"
	"gitlab.com/yelinaung/tgbot/internal/logger"
)

// openPersistence opens the configured backend. The returned close function
// is never nil. A nil persistence means data is not persisted.
func openPersistence(ctx context.Context, cfg *config.Config) (ext.Persistence, func(), error) {
	noop := func() {}
	dsn := cfg.PersistenceDSN

	switch cfg.Persistence {
	case config.PersistenceNone, "":
		return nil, noop, nil

	case config.PersistenceMemory:
		return persistence.NewDict(), noop, nil

	case config.PersistenceFile:
		p, err := persistence.NewFile(persistence.FileConfig{Path: dsn})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create file persistence: %w", err)
		}
		return p, noop, nil

	case config.PersistenceSQLite:
		p, err := persistence.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open sqlite persistence: %w", err)
		}
		return p, func() { closeLogged("sqlite", p.Close()) }, nil

	case config.PersistencePostgres:
		pool, err := database.Connect(ctx, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}
		p, err := persistence.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Log.Info().Msg("Database initialized successfully")
		return p, pool.Close, nil

	case config.PersistenceRedis:
		opts, err := redisOptions(dsn)
		if err != nil {
			return nil, noop, err
		}
		client := redis.NewClient(opts)
		if err := client.WithContext(ctx).Ping().Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return persistence.NewRedis(client, ""), func() { closeLogged("redis", client.Close()) }, nil
	}
	return nil, noop, fmt.Errorf("unknown persistence %q", cfg.Persistence)
}

// redisOptions accepts a redis:// URL or a plain host:port address.
func redisOptions(dsn string) (*redis.Options, error) {
	if !strings.Contains(dsn, "://") {
		return &redis.Options{Addr: dsn}, nil
	}
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

func closeLogged(name string, err error) {
	if err != nil {
		logger.Log.Error().Err(err).Str("persistence", name).Msg("Failed to close persistence")
	}
}
