package cisco

import (
	"context"
	"slices"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/mib"
	"github.com/HerbHall/mibagent/internal/topology"
	"github.com/HerbHall/mibagent/pkg/countersdb"
	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// Queue directions in the csqIfQosGroupStatsTable index.
const (
	dirIngress uint32 = 1
	dirEgress  uint32 = 2
)

// counterKind is one csqIfQosGroupStatsTable counter id.
type counterKind struct {
	id        uint32
	field     string
	queueType string
}

var counterKinds = []counterKind{
	{1, "SAI_QUEUE_STAT_PACKETS", countersdb.QueueTypeUnicast},
	{2, "SAI_QUEUE_STAT_BYTES", countersdb.QueueTypeUnicast},
	{3, "SAI_QUEUE_STAT_PACKETS", countersdb.QueueTypeMulticast},
	{4, "SAI_QUEUE_STAT_BYTES", countersdb.QueueTypeMulticast},
	{5, "SAI_QUEUE_STAT_DROPPED_PACKETS", countersdb.QueueTypeUnicast},
	{6, "SAI_QUEUE_STAT_DROPPED_BYTES", countersdb.QueueTypeUnicast},
	{7, "SAI_QUEUE_STAT_DROPPED_PACKETS", countersdb.QueueTypeMulticast},
	{8, "SAI_QUEUE_STAT_DROPPED_BYTES", countersdb.QueueTypeMulticast},
}

func kindByID(id uint32) (counterKind, bool) {
	if id < 1 || int(id) > len(counterKinds) {
		return counterKind{}, false
	}
	return counterKinds[id-1], true
}

// Compile-time interface guard.
var _ plugin.MIB = (*QosGroupStats)(nil)

// QosGroupStats serves csqIfQosGroupStatsTable: per-queue packet, byte and
// drop counters indexed by (ifIndex, direction, queue, counter id). Only
// egress queues carry counters. A counter id appears in a walk only where
// the queue's type matches it; a get on any other counter id of an existing
// queue answers 0.
type QosGroupStats struct {
	module
}

// NewQosGroupStats creates the csqIfQosGroupStatsTable module.
func NewQosGroupStats() *QosGroupStats {
	m := &QosGroupStats{}
	m.module = newModule(NameQosGroupStats, "Per-queue QoS statistics", PrefixQosGroupStats,
		[]mib.Column{{
			SubID: oid.OID{1, 4},
			Name:  "csqIfQosGroupStats",
			Type:  gosnmp.Counter64,
			Select: func(s oid.OID) (mib.Selector, bool) {
				if len(s) != 4 {
					return mib.Selector{}, false
				}
				k, ok := kindByID(s[3])
				return mib.Selector{Field: k.field, WantType: k.queueType}, ok
			},
		}},
		func(deps plugin.Dependencies, cfg Config) (mib.Updater, error) {
			if deps.Store == nil {
				return nil, errNoStore
			}
			logger := deps.Logger
			if logger == nil {
				logger = zap.NewNop()
			}
			return &qosUpdater{
				topo:           topology.NewStoreSource(deps.Store, logger),
				store:          deps.Store,
				concurrency:    cfg.Concurrency,
				includeIngress: cfg.IncludeIngress,
				logger:         logger,
			}, nil
		},
	)
	return m
}

type qosUpdater struct {
	topo           topology.Source
	store          countersdb.Reader
	concurrency    int
	includeIngress bool
	logger         *zap.Logger
}

// queueKey addresses one queue position of an entity.
type queueKey struct {
	entity   uint32
	position uint32
}

func (u *qosUpdater) Update(ctx context.Context) (*mib.Snapshot, error) {
	t, err := u.topo.Load(ctx)
	if err != nil {
		return nil, err
	}

	b := mib.NewIndexBuilder(u.logger)
	queues := make(map[queueKey]mib.Descriptor)
	var allSources [][]mib.Source

	for _, e := range mib.Entities(t, u.logger) {
		// A LAG exposes the union of its members' queue positions; each
		// position sums the members' queues at that position.
		byPos := make(map[uint32][]mib.Source)
		for _, member := range e.Members {
			for _, q := range t.Queues[member.Index] {
				byPos[q.Position] = append(byPos[q.Position], mib.Source{
					Name: member.Name,
					Key:  countersdb.CounterKey(q.StorageID),
					Type: q.Type,
				})
			}
		}

		for pos, srcs := range byPos {
			desc := mib.Descriptor{Entity: e.Index, Group: e.Group, Sources: srcs}
			queues[queueKey{e.Index, pos}] = desc
			allSources = append(allSources, srcs)

			for _, k := range counterKinds {
				if !slices.ContainsFunc(srcs, func(s mib.Source) bool { return s.Type == k.queueType }) {
					continue
				}
				b.Add(oid.OID{e.Index, dirEgress, pos, k.id}, desc)
				if u.includeIngress {
					b.Add(oid.OID{e.Index, dirIngress, pos, k.id}, zeroRow(e))
				}
			}
		}
	}

	x := b.Build()
	counters, err := mib.ReadCounters(ctx, u.store, mib.SourceKeys(allSources...), u.concurrency, u.logger)
	if err != nil {
		return nil, err
	}

	snap := mib.IndexSnapshot(x, counters)
	snap.Describe = func(s oid.OID) (mib.Descriptor, bool) {
		if d, ok := x.Lookup(s); ok {
			return d, true
		}
		if len(s) != 4 {
			return mib.Descriptor{}, false
		}
		if _, ok := kindByID(s[3]); !ok {
			return mib.Descriptor{}, false
		}
		d, ok := queues[queueKey{s[0], s[2]}]
		if !ok {
			return mib.Descriptor{}, false
		}
		switch {
		case s[1] == dirEgress:
			return d, true
		case s[1] == dirIngress && u.includeIngress:
			return mib.Descriptor{Entity: d.Entity, Group: d.Group, Fixed: true}, true
		}
		return mib.Descriptor{}, false
	}
	return snap, nil
}

func zeroRow(e mib.Entity) mib.Descriptor {
	return mib.Descriptor{Entity: e.Index, Group: e.Group, Fixed: true}
}
