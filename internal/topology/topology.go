// Package topology loads the switch's interface, LAG, and queue layout from
// the counter store.
package topology

import (
	"context"
	"slices"
)

// Interface is a physical or management port with its own counters.
type Interface struct {
	Index     uint32 // OID index derived from Name
	Name      string
	StorageID string // "oid:0x..." key suffix of the port's counters
}

// LAG is a link aggregation group. It has no counters of its own; its
// values are the sums over Members, which are interface names.
type LAG struct {
	Index   uint32
	Name    string
	Members []string
}

// Queue is one egress queue of an interface.
type Queue struct {
	Position  uint32 // 1-based
	StorageID string
	Type      string // SAI_QUEUE_TYPE_*; empty until populated
}

// QueueAssignments lists each interface's queues, keyed by interface index
// and ordered by Position.
type QueueAssignments map[uint32][]Queue

// Topology is one consistent read of the switch layout. Interfaces and LAGs
// are ordered by Index.
type Topology struct {
	Interfaces []Interface
	LAGs       []LAG
	Queues     QueueAssignments
}

// Source produces the current topology.
type Source interface {
	Load(ctx context.Context) (*Topology, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Topology, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) (*Topology, error) { return f(ctx) }

// Interface returns the interface with the given OID index. It relies on
// Interfaces being ordered by Index.
func (t *Topology) Interface(index uint32) (Interface, bool) {
	i, ok := slices.BinarySearchFunc(t.Interfaces, index, func(it Interface, idx uint32) int {
		switch {
		case it.Index < idx:
			return -1
		case it.Index > idx:
			return 1
		}
		return 0
	})
	if !ok {
		return Interface{}, false
	}
	return t.Interfaces[i], true
}

// InterfaceByName returns the interface called name.
func (t *Topology) InterfaceByName(name string) (Interface, bool) {
	for _, it := range t.Interfaces {
		if it.Name == name {
			return it, true
		}
	}
	return Interface{}, false
}
