package mib

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/mibagent/pkg/countersdb"
)

// DefaultReadConcurrency bounds the parallel store reads of one refresh.
const DefaultReadConcurrency = 16

// ReadCounters fetches the COUNTERS_DB hashes at keys with at most limit
// reads in flight. Keys that fail to read are left out and logged; the call
// fails only when every read fails. Absent keys are left out silently.
func ReadCounters(ctx context.Context, store countersdb.Reader, keys []string, limit int, logger *zap.Logger) (map[string]map[string]string, error) {
	if limit <= 0 {
		limit = DefaultReadConcurrency
	}

	var (
		mu       sync.Mutex
		counters = make(map[string]map[string]string, len(keys))
		errs     []error
	)

	var g errgroup.Group
	g.SetLimit(limit)
	for _, key := range keys {
		g.Go(func() error {
			fields, err := store.GetAll(ctx, countersdb.CountersDB, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("read %s: %w", key, err))
				return nil
			}
			if fields != nil {
				counters[key] = fields
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		if len(errs) == len(keys) {
			return nil, errors.Join(errs...)
		}
		logger.Warn("some counter reads failed, their rows resolve to 0",
			zap.Int("failed", len(errs)),
			zap.Int("total", len(keys)),
			zap.Error(errs[0]),
		)
	}
	return counters, nil
}

// SourceKeys returns the distinct keys read by sources, in first seen order.
func SourceKeys(sources ...[]Source) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, srcs := range sources {
		for _, s := range srcs {
			if _, ok := seen[s.Key]; ok {
				continue
			}
			seen[s.Key] = struct{}{}
			keys = append(keys, s.Key)
		}
	}
	return keys
}
