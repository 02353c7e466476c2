package cisco

import (
	"context"
	"fmt"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/mib"
	"github.com/HerbHall/mibagent/internal/topology"
	"github.com/HerbHall/mibagent/pkg/countersdb"
	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// PFC priorities are numbered 1..8 in the MIB and 0..7 in counter names.
const maxPriority = 8

// Port counters for the priority the interface-level PFC table reports.
const (
	fieldPFC3Rx = "SAI_PORT_STAT_PFC_3_RX_PKTS"
	fieldPFC3Tx = "SAI_PORT_STAT_PFC_3_TX_PKTS"
)

func pfcField(priority uint32, dir string) string {
	return fmt.Sprintf("SAI_PORT_STAT_PFC_%d_%s_PKTS", priority-1, dir)
}

// Compile-time interface guards.
var (
	_ plugin.MIB       = (*PFCIf)(nil)
	_ plugin.Validator = (*PFCIf)(nil)
	_ plugin.MIB       = (*PFCIfPriority)(nil)
)

// portCounters loads the entity list and the port counter hashes of every
// member interface.
type portCounters struct {
	topo        topology.Source
	store       countersdb.Reader
	concurrency int
	logger      *zap.Logger
}

func newPortCounters(deps plugin.Dependencies, cfg Config) (*portCounters, error) {
	if deps.Store == nil {
		return nil, errNoStore
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &portCounters{
		topo:        topology.NewStoreSource(deps.Store, logger),
		store:       deps.Store,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}, nil
}

func (p *portCounters) load(ctx context.Context) ([]mib.Entity, map[string]map[string]string, error) {
	t, err := p.topo.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	ents := mib.Entities(t, p.logger)

	srcs := make([][]mib.Source, 0, len(ents))
	for _, e := range ents {
		srcs = append(srcs, e.PortSources())
	}
	counters, err := mib.ReadCounters(ctx, p.store, mib.SourceKeys(srcs...), p.concurrency, p.logger)
	if err != nil {
		return nil, nil, err
	}
	return ents, counters, nil
}

// PFCIf serves cpfcIfTable: PFC frames received and sent per interface and
// LAG, indexed by ifIndex.
type PFCIf struct {
	module
}

// NewPFCIf creates the cpfcIfTable module.
func NewPFCIf() *PFCIf {
	m := &PFCIf{}
	m.module = newModule(NamePFCIf, "Per-interface priority flow control counters", PrefixPFCIf,
		[]mib.Column{
			{SubID: oid.OID{1, 1}, Name: "cpfcIfRequests", Type: gosnmp.Counter64, Selector: mib.Selector{Field: fieldPFC3Rx}},
			{SubID: oid.OID{1, 2}, Name: "cpfcIfIndications", Type: gosnmp.Counter64, Selector: mib.Selector{Field: fieldPFC3Tx}},
		},
		func(deps plugin.Dependencies, cfg Config) (mib.Updater, error) {
			pc, err := newPortCounters(deps, cfg)
			if err != nil {
				return nil, err
			}
			return &pfcIfUpdater{pc}, nil
		},
	)
	return m
}

type pfcIfUpdater struct {
	*portCounters
}

func (u *pfcIfUpdater) Update(ctx context.Context) (*mib.Snapshot, error) {
	ents, counters, err := u.load(ctx)
	if err != nil {
		return nil, err
	}
	b := mib.NewIndexBuilder(u.logger)
	for _, e := range ents {
		b.Add(oid.OID{e.Index}, mib.Descriptor{Entity: e.Index, Group: e.Group, Sources: e.PortSources()})
	}
	return mib.IndexSnapshot(b.Build(), counters), nil
}

// PFCIfPriority serves cpfcIfPriorityTable: PFC frames per interface and
// priority, indexed by (ifIndex, priority 1..8).
type PFCIfPriority struct {
	module
}

// NewPFCIfPriority creates the cpfcIfPriorityTable module.
func NewPFCIfPriority() *PFCIfPriority {
	m := &PFCIfPriority{}
	m.module = newModule(NamePFCIfPriority, "Per-priority priority flow control counters", PrefixPFCIfPriority,
		[]mib.Column{
			{SubID: oid.OID{1, 2}, Name: "cpfcIfPriorityRequests", Type: gosnmp.Counter64, Select: prioritySelector("RX")},
			{SubID: oid.OID{1, 3}, Name: "cpfcIfPriorityIndications", Type: gosnmp.Counter64, Select: prioritySelector("TX")},
		},
		func(deps plugin.Dependencies, cfg Config) (mib.Updater, error) {
			pc, err := newPortCounters(deps, cfg)
			if err != nil {
				return nil, err
			}
			return &pfcPriorityUpdater{pc}, nil
		},
	)
	return m
}

func prioritySelector(dir string) func(oid.OID) (mib.Selector, bool) {
	return func(s oid.OID) (mib.Selector, bool) {
		if len(s) != 2 || s[1] < 1 || s[1] > maxPriority {
			return mib.Selector{}, false
		}
		return mib.Selector{Field: pfcField(s[1], dir)}, true
	}
}

type pfcPriorityUpdater struct {
	*portCounters
}

func (u *pfcPriorityUpdater) Update(ctx context.Context) (*mib.Snapshot, error) {
	ents, counters, err := u.load(ctx)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[uint32]mib.Descriptor, len(ents))
	indexes := make([]uint32, 0, len(ents))
	for _, e := range ents {
		indexes = append(indexes, e.Index)
		byIndex[e.Index] = mib.Descriptor{Entity: e.Index, Group: e.Group, Sources: e.PortSources()}
	}

	w := mib.NewWalker(mib.Fixed(indexes...), mib.Span(1, maxPriority))
	return &mib.Snapshot{
		Rows:     w,
		Counters: counters,
		Describe: func(s oid.OID) (mib.Descriptor, bool) {
			if !w.Contains(s) {
				return mib.Descriptor{}, false
			}
			d, ok := byIndex[s[0]]
			return d, ok
		},
	}, nil
}
