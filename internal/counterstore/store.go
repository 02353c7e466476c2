// Package counterstore provides the counter store clients the agent reads
// from: Redis (the switch's live databases), SQLite (captured dumps), and an
// in-memory store for tests.
package counterstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/mibagent/pkg/countersdb"
)

// ErrUnsupportedDriver is returned by Open for an unknown store.driver value.
var ErrUnsupportedDriver = errors.New("unsupported counter store driver")

// Store is a counter store reader that holds resources.
type Store interface {
	countersdb.Reader
	Close() error
}

// Dump is the portable form of a counter store: db -> key -> field -> value.
type Dump map[countersdb.DB]map[string]map[string]string

// Config selects and configures a counter store.
type Config struct {
	Driver string       `mapstructure:"driver"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Driver: "redis",
		Redis: RedisConfig{
			Network:     "unix",
			Address:     "/var/run/redis/redis.sock",
			DialTimeout: 2 * time.Second,
		},
		SQLite: SQLiteConfig{Path: "./data/counters.db"},
	}
}

// Open constructs the store named by cfg.Driver and verifies it is reachable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis", "":
		r := NewRedis(cfg.Redis)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	case "sqlite":
		return NewSQLite(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}
