package counterstore

import (
	"context"
	"fmt"
	"maps"
	"path"
	"sort"
	"sync"

	"github.com/HerbHall/mibagent/pkg/countersdb"
)

// Compile-time interface guard.
var _ countersdb.Reader = (*Memory)(nil)

// Memory is an in-memory counter store. It is safe for concurrent use and
// supports injected failures so tests can exercise degraded refreshes.
type Memory struct {
	mu      sync.RWMutex
	data    Dump
	err     error
	keyErrs map[string]error
	reads   int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:    make(Dump),
		keyErrs: make(map[string]error),
	}
}

// HSet writes fields into the hash at key, replacing existing values.
func (m *Memory) HSet(db countersdb.DB, key string, fields map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[db] == nil {
		m.data[db] = make(map[string]map[string]string)
	}
	h := m.data[db][key]
	if h == nil {
		h = make(map[string]string, len(fields))
		m.data[db][key] = h
	}
	maps.Copy(h, fields)
}

// Del removes key.
func (m *Memory) Del(db countersdb.DB, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[db], key)
}

// HDel removes fields from the hash at key.
func (m *Memory) HDel(db countersdb.DB, key string, fields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fields {
		delete(m.data[db][key], f)
	}
}

// FailAll makes every subsequent call return err. Pass nil to recover.
func (m *Memory) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailKey makes GetAll on key return err. Pass nil to recover.
func (m *Memory) FailKey(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.keyErrs, key)
		return
	}
	m.keyErrs[key] = err
}

// Reads returns how many GetAll calls the store has served.
func (m *Memory) Reads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads
}

// GetAll implements countersdb.Reader. The returned map is a copy.
func (m *Memory) GetAll(_ context.Context, db countersdb.DB, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	if err := m.keyErrs[key]; err != nil {
		return nil, err
	}
	h, ok := m.data[db][key]
	if !ok || len(h) == 0 {
		return nil, nil
	}
	return maps.Clone(h), nil
}

// Keys implements countersdb.Reader.
func (m *Memory) Keys(_ context.Context, db countersdb.DB, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	var keys []string
	for k := range m.data[db] {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, fmt.Errorf("keys %s %q: %w", db, pattern, err)
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
