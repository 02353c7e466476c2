// Package registry manages table lifecycle and dispatches SNMP queries:
// registration, prefix validation, initialization, shutdown, and routing of
// get and get-next requests to the table that owns an OID.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// ErrPrefixOverlap is returned by Validate when one table's prefix contains
// another's.
var ErrPrefixOverlap = errors.New("table prefixes overlap")

// Registry manages the lifecycle of all registered tables.
type Registry struct {
	mu       sync.RWMutex
	tables   map[string]plugin.MIB
	infos    map[string]plugin.PluginInfo
	order    []string // prefix order after Validate
	disabled map[string]bool
	logger   *zap.Logger
}

// New creates a new table registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		tables:   make(map[string]plugin.MIB),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a table to the registry. Must be called before Validate.
func (r *Registry) Register(m plugin.MIB) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := m.Info()
	name := info.Name

	if name == "" {
		return fmt.Errorf("table has empty name")
	}
	if _, exists := r.tables[name]; exists {
		return fmt.Errorf("table %q already registered", name)
	}
	if len(m.Prefix()) == 0 {
		return fmt.Errorf("table %q has empty prefix", name)
	}

	r.tables[name] = m
	r.infos[name] = info
	r.logger.Info("table registered",
		zap.String("name", name),
		zap.String("prefix", m.Prefix().String()),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// Validate checks API version compatibility, orders the active tables by
// prefix, and verifies that no prefix contains another.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, info := range r.infos {
		if err := r.checkAPIVersion(name, info.APIVersion); err != nil {
			if info.Required {
				return err
			}
			r.logger.Warn("disabling table due to API version incompatibility",
				zap.String("name", name),
				zap.Error(err),
			)
			r.disabled[name] = true
		}
	}

	order := make([]string, 0, len(r.tables))
	for name := range r.tables {
		if !r.disabled[name] {
			order = append(order, name)
		}
	}
	slices.SortFunc(order, func(a, b string) int {
		return oid.Compare(r.tables[a].Prefix(), r.tables[b].Prefix())
	})

	// In prefix order a containing prefix sorts directly before the
	// prefixes it contains.
	for i := 1; i < len(order); i++ {
		prev, cur := r.tables[order[i-1]].Prefix(), r.tables[order[i]].Prefix()
		if cur.HasPrefix(prev) {
			return fmt.Errorf("%w: %q (%s) contains %q (%s)",
				ErrPrefixOverlap, order[i-1], prev, order[i], cur)
		}
	}
	r.order = order

	r.logger.Info("table validation complete",
		zap.Strings("order", r.order),
		zap.Int("active", len(r.order)),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// InitAll initializes all active tables in prefix order.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		m := r.tables[name]
		info := r.infos[name]

		r.logger.Info("initializing table", zap.String("name", name))
		if err := safeCall(func() error { return m.Init(ctx, depsFn(name)) }); err != nil {
			if info.Required {
				return fmt.Errorf("required table %q failed to initialize: %w", name, err)
			}
			r.logger.Error("optional table failed to initialize, disabling",
				zap.String("name", name),
				zap.Error(err),
			)
			r.disabled[name] = true
			continue
		}

		if v, ok := m.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				if info.Required {
					return fmt.Errorf("required table %q config validation failed: %w", name, err)
				}
				r.logger.Error("optional table config validation failed, disabling",
					zap.String("name", name),
					zap.Error(err),
				)
				r.disabled[name] = true
			}
		}
	}
	return nil
}

// StartAll starts all initialized tables in prefix order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		m := r.tables[name]
		r.logger.Info("starting table", zap.String("name", name))
		if err := safeCall(func() error { return m.Start(ctx) }); err != nil {
			if r.infos[name].Required {
				return fmt.Errorf("required table %q failed to start: %w", name, err)
			}
			r.logger.Error("optional table failed to start, disabling",
				zap.String("name", name),
				zap.Error(err),
			)
			r.disabled[name] = true
		}
	}
	return nil
}

// StopAll stops all active tables in reverse prefix order. A table that
// fails or panics does not keep the others from stopping.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if r.disabled[name] {
			continue
		}
		m := r.tables[name]
		r.logger.Info("stopping table", zap.String("name", name))
		if err := safeCall(func() error { return m.Stop(ctx) }); err != nil {
			r.logger.Error("failed to stop table", zap.String("name", name), zap.Error(err))
		}
	}
}

// Lookup returns an active table by name.
func (r *Registry) Lookup(name string) (plugin.MIB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.tables[name]
	if ok && r.disabled[name] {
		return nil, false
	}
	return m, ok
}

// All returns all active tables in prefix order.
func (r *Registry) All() []plugin.MIB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active()
}

// IsDisabled returns whether a table has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// Status returns the status of every active table in prefix order.
func (r *Registry) Status() []plugin.TableStatus {
	tables := r.All()
	out := make([]plugin.TableStatus, 0, len(tables))
	for _, m := range tables {
		out = append(out, m.Status())
	}
	return out
}

// RefreshAll refreshes every active table once. Errors are joined; a
// failing table does not keep the others from refreshing.
func (r *Registry) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, m := range r.All() {
		if err := m.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Info().Name, err))
		}
	}
	return errors.Join(errs...)
}

// Get answers a point query. OIDs outside every table yield NoSuchObject.
func (r *Registry) Get(ctx context.Context, name oid.OID) gosnmp.SnmpPDU {
	if m, ok := r.owner(name); ok {
		return m.Get(ctx, name)
	}
	return gosnmp.SnmpPDU{Name: name.Dotted(), Type: gosnmp.NoSuchObject}
}

// GetNext returns the first instance after name across all tables. Past
// the last instance of the last table it yields EndOfMibView.
func (r *Registry) GetNext(ctx context.Context, name oid.OID) gosnmp.SnmpPDU {
	for _, m := range r.All() {
		prefix := m.Prefix()
		if !name.HasPrefix(prefix) && oid.Compare(name, prefix) > 0 {
			continue
		}
		if pdu, ok := m.GetNext(ctx, name); ok {
			return pdu
		}
	}
	return gosnmp.SnmpPDU{Name: name.Dotted(), Type: gosnmp.EndOfMibView}
}

// Walk calls fn for each instance under root in order, stopping after limit
// instances when limit is positive, or when fn returns false.
func (r *Registry) Walk(ctx context.Context, root oid.OID, limit int, fn func(gosnmp.SnmpPDU) bool) {
	cur := root
	for n := 0; limit <= 0 || n < limit; n++ {
		if ctx.Err() != nil {
			return
		}
		pdu := r.GetNext(ctx, cur)
		if pdu.Type == gosnmp.EndOfMibView {
			return
		}
		next, err := oid.Parse(pdu.Name)
		if err != nil || !next.HasPrefix(root) {
			return
		}
		if !fn(pdu) {
			return
		}
		cur = next
	}
}

// owner returns the active table whose prefix contains name.
func (r *Registry) owner(name oid.OID) (plugin.MIB, bool) {
	for _, m := range r.All() {
		if name.HasPrefix(m.Prefix()) {
			return m, true
		}
	}
	return nil, false
}

func (r *Registry) active() []plugin.MIB {
	result := make([]plugin.MIB, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			result = append(result, r.tables[name])
		}
	}
	return result
}

// checkAPIVersion validates a table's API version against the agent's range.
func (r *Registry) checkAPIVersion(name string, apiVersion int) error {
	if apiVersion < plugin.APIVersionMin {
		return fmt.Errorf(
			"table %q targets API v%d, but this agent requires v%d or newer (current: v%d)",
			name, apiVersion, plugin.APIVersionMin, plugin.APIVersionCurrent,
		)
	}
	if apiVersion > plugin.APIVersionCurrent {
		return fmt.Errorf(
			"table %q targets API v%d, but this agent only supports up to v%d",
			name, apiVersion, plugin.APIVersionCurrent,
		)
	}
	return nil
}

// safeCall runs fn, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
