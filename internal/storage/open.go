package storage

import (
	"context"
	"fmt"

	"hostelmon/internal/complaint"
	"hostelmon/internal/config"

	"go.uber.org/zap"
)

// Open builds the store selected by cfg.StoreBackend. The returned close
// function releases connections and is never nil.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (complaint.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemory(), noop, nil

	case config.BackendCSV:
		m, err := OpenCSV(cfg.CSVPath, log)
		if err != nil {
			return nil, noop, err
		}
		return m, noop, nil

	case config.BackendPostgres:
		db, err := OpenPostgres(cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, noop, err
		}
		pg := NewPostgres(db, log)
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, noop, err
		}
		return pg, pg.Close, nil

	case config.BackendRedis:
		r := NewRedis(NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), log)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, noop, fmt.Errorf("failed to ping redis: %w", err)
		}
		return r, r.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
