package mib

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/topology"
	"github.com/HerbHall/mibagent/pkg/countersdb"
)

// Entity is one value of the interface dimension shared by the tables:
// either a physical interface or a LAG. A physical interface is its own
// only member.
type Entity struct {
	Index   uint32
	Name    string
	Group   bool
	Members []topology.Interface
}

// PortSources returns the port counter hashes of the entity's members.
func (e Entity) PortSources() []Source {
	srcs := make([]Source, 0, len(e.Members))
	for _, m := range e.Members {
		srcs = append(srcs, Source{Name: m.Name, Key: countersdb.CounterKey(m.StorageID)})
	}
	return srcs
}

// Entities merges interfaces and LAGs into one list ordered by index.
// LAG members that are not known interfaces are dropped with a warning; a
// LAG whose index collides with an interface or an earlier LAG is skipped.
func Entities(t *topology.Topology, logger *zap.Logger) []Entity {
	out := make([]Entity, 0, len(t.Interfaces)+len(t.LAGs))
	for _, it := range t.Interfaces {
		out = append(out, Entity{Index: it.Index, Name: it.Name, Members: []topology.Interface{it}})
	}

	lags := make(map[uint32]string, len(t.LAGs))
	for _, lag := range t.LAGs {
		if it, dup := t.Interface(lag.Index); dup {
			logger.Warn("LAG index collides with an interface, skipping",
				zap.String("lag", lag.Name),
				zap.String("interface", it.Name),
				zap.Uint32("index", lag.Index),
			)
			continue
		}
		if other, dup := lags[lag.Index]; dup {
			logger.Warn("LAG index collides with another LAG, skipping",
				zap.String("lag", lag.Name),
				zap.String("conflicts_with", other),
				zap.Uint32("index", lag.Index),
			)
			continue
		}
		lags[lag.Index] = lag.Name

		e := Entity{Index: lag.Index, Name: lag.Name, Group: true}
		for _, name := range lag.Members {
			it, ok := t.InterfaceByName(name)
			if !ok {
				logger.Warn("LAG member is not a known interface, dropping",
					zap.String("lag", lag.Name),
					zap.String("member", name),
				)
				continue
			}
			e.Members = append(e.Members, it)
		}
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b Entity) int { return cmp.Compare(a.Index, b.Index) })
	return out
}
