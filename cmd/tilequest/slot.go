package main

import (
	"context"
	"fmt"

	"tilequest/adapters/jsonfile"
	"tilequest/adapters/memory"
	redisAdapter "tilequest/adapters/redis"
	"tilequest/adapters/sqlite"
	"tilequest/config"
	"tilequest/engine"
)

func noClose() error { return nil }

// newSlot builds the storage slot selected by cfg.
func newSlot(ctx context.Context, cfg config.StorageConfig) (engine.Slot, func() error, error) {
	switch cfg.Adapter {
	case "memory":
		return memory.New(memory.WithQuota(cfg.Quota)), noClose, nil
	case "file":
		s, err := jsonfile.New(cfg.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, noClose, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		rc := cfg.Redis
		if cfg.Quota > 0 {
			rc.Quota = int64(cfg.Quota)
		}
		s, err := redisAdapter.New(rc)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
}
