package topology

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/pkg/countersdb"
)

// Compile-time interface guard.
var _ Source = (*StoreSource)(nil)

// StoreSource reads the topology from the name maps in COUNTERS_DB and the
// LAG tables in APPL_DB.
type StoreSource struct {
	store  countersdb.Reader
	logger *zap.Logger
}

// NewStoreSource creates a topology source backed by store.
func NewStoreSource(store countersdb.Reader, logger *zap.Logger) *StoreSource {
	return &StoreSource{store: store, logger: logger}
}

// Load implements Source. Store errors fail the load; entries that cannot be
// mapped to an OID index are skipped with a warning. A store that has not
// been populated yet produces an empty topology.
func (s *StoreSource) Load(ctx context.Context) (*Topology, error) {
	ctx, span := otel.Tracer("mibagent/topology").Start(ctx, "topology.load")
	defer span.End()

	t, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("interfaces", len(t.Interfaces)),
		attribute.Int("lags", len(t.LAGs)),
	)
	return t, nil
}

func (s *StoreSource) load(ctx context.Context) (*Topology, error) {
	ifaces, err := s.loadInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	t := &Topology{Interfaces: ifaces}

	if t.Queues, err = s.loadQueues(ctx, t); err != nil {
		return nil, err
	}
	if t.LAGs, err = s.loadLAGs(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *StoreSource) loadInterfaces(ctx context.Context) ([]Interface, error) {
	names, err := s.store.GetAll(ctx, countersdb.CountersDB, countersdb.PortNameMap)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", countersdb.PortNameMap, err)
	}

	// Names are visited in sorted order so that of two names mapping to the
	// same index the lexically smaller one always wins.
	ifaces := make([]Interface, 0, len(names))
	seen := make(map[uint32]string, len(names))
	for _, name := range slices.Sorted(maps.Keys(names)) {
		sid := names[name]
		idx, ok := countersdb.IfIndex(name)
		if !ok {
			s.logger.Warn("skipping interface with unrecognized name", zap.String("interface", name))
			continue
		}
		if other, dup := seen[idx]; dup {
			s.logger.Warn("skipping interface with duplicate index",
				zap.String("interface", name),
				zap.String("conflicts_with", other),
				zap.Uint32("index", idx),
			)
			continue
		}
		seen[idx] = name
		ifaces = append(ifaces, Interface{Index: idx, Name: name, StorageID: sid})
	}
	slices.SortFunc(ifaces, func(a, b Interface) int { return cmp.Compare(a.Index, b.Index) })
	return ifaces, nil
}

func (s *StoreSource) loadQueues(ctx context.Context, t *Topology) (QueueAssignments, error) {
	names, err := s.store.GetAll(ctx, countersdb.CountersDB, countersdb.QueueNameMap)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", countersdb.QueueNameMap, err)
	}
	types, err := s.store.GetAll(ctx, countersdb.CountersDB, countersdb.QueueTypeMap)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", countersdb.QueueTypeMap, err)
	}

	qa := make(QueueAssignments)
	for _, qname := range slices.Sorted(maps.Keys(names)) {
		sid := names[qname]
		ifName, n, ok := countersdb.SplitQueueName(qname)
		if !ok {
			s.logger.Warn("skipping queue with malformed name", zap.String("queue", qname))
			continue
		}
		it, ok := t.InterfaceByName(ifName)
		if !ok {
			s.logger.Debug("skipping queue of unknown interface", zap.String("queue", qname))
			continue
		}
		qa[it.Index] = append(qa[it.Index], Queue{
			Position:  uint32(n) + 1,
			StorageID: sid,
			Type:      types[sid],
		})
	}
	for idx, qs := range qa {
		slices.SortFunc(qs, func(a, b Queue) int {
			return cmp.Or(cmp.Compare(a.Position, b.Position), strings.Compare(a.StorageID, b.StorageID))
		})
		qa[idx] = slices.CompactFunc(qs, func(a, b Queue) bool {
			if a.Position != b.Position {
				return false
			}
			s.logger.Warn("skipping queue with duplicate position",
				zap.Uint32("interface_index", idx),
				zap.Uint32("position", a.Position),
				zap.String("storage_id", a.StorageID),
				zap.String("conflicts_with", b.StorageID),
			)
			return true
		})
	}
	return qa, nil
}

func (s *StoreSource) loadLAGs(ctx context.Context) ([]LAG, error) {
	lagKeys, err := s.store.Keys(ctx, countersdb.ApplDB, countersdb.LagTablePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list LAGs: %w", err)
	}
	memberKeys, err := s.store.Keys(ctx, countersdb.ApplDB, countersdb.LagMemberTablePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list LAG members: %w", err)
	}

	members := make(map[string][]string)
	for _, k := range memberKeys {
		lag, member, ok := strings.Cut(strings.TrimPrefix(k, countersdb.LagMemberTablePrefix), ":")
		if !ok || lag == "" || member == "" {
			s.logger.Warn("skipping malformed LAG member key", zap.String("key", k))
			continue
		}
		members[lag] = append(members[lag], member)
	}

	lags := make([]LAG, 0, len(lagKeys))
	for _, k := range lagKeys {
		name := strings.TrimPrefix(k, countersdb.LagTablePrefix)
		idx, ok := countersdb.IfIndex(name)
		if !ok {
			s.logger.Warn("skipping LAG with unrecognized name", zap.String("lag", name))
			continue
		}
		m := members[name]
		slices.Sort(m)
		lags = append(lags, LAG{Index: idx, Name: name, Members: slices.Compact(m)})
		delete(members, name)
	}
	for lag := range members {
		s.logger.Warn("ignoring members of unknown LAG", zap.String("lag", lag))
	}
	slices.SortFunc(lags, func(a, b LAG) int { return cmp.Compare(a.Index, b.Index) })
	return lags, nil
}
