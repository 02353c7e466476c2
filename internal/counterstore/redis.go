package counterstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HerbHall/mibagent/pkg/countersdb"
	"github.com/redis/go-redis/v9"
)

// Compile-time interface guard.
var _ countersdb.Reader = (*Redis)(nil)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 512

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Network     string        `mapstructure:"network"` // "unix" or "tcp"
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Redis reads the switch databases. Each logical database gets its own
// client, created on first use.
type Redis struct {
	cfg     RedisConfig
	mu      sync.Mutex
	clients map[countersdb.DB]*redis.Client
}

// NewRedis creates a Redis store. No connection is made until the first call.
func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{
		cfg:     cfg,
		clients: make(map[countersdb.DB]*redis.Client),
	}
}

func (r *Redis) client(db countersdb.DB) *redis.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[db]
	if !ok {
		c = redis.NewClient(&redis.Options{
			Network:     r.cfg.Network,
			Addr:        r.cfg.Address,
			Password:    r.cfg.Password,
			DB:          int(db),
			DialTimeout: r.cfg.DialTimeout,
		})
		r.clients[db] = c
	}
	return c
}

// Ping verifies that COUNTERS_DB is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client(countersdb.CountersDB).Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s %s: %w", r.cfg.Network, r.cfg.Address, err)
	}
	return nil
}

// GetAll implements countersdb.Reader. Redis answers HGETALL on a missing
// key with an empty hash, which is reported as absent.
func (r *Redis) GetAll(ctx context.Context, db countersdb.DB, key string) (map[string]string, error) {
	m, err := r.client(db).HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s %q: %w", db, key, err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

// Keys implements countersdb.Reader using SCAN so a large database is never
// blocked by KEYS.
func (r *Redis) Keys(ctx context.Context, db countersdb.DB, pattern string) ([]string, error) {
	var keys []string
	iter := r.client(db).Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s %q: %w", db, pattern, err)
	}
	sort.Strings(keys)
	return dedupe(keys), nil
}

// Close closes every client opened so far.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for db, c := range r.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.clients, db)
	}
	return firstErr
}

// dedupe removes adjacent duplicates; SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, k := range sorted[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
