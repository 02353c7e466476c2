package mib

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/mibagent/pkg/oid"
)

// Source is one counter hash that contributes to a row value.
type Source struct {
	Name string // owning interface, for logs
	Key  string // COUNTERS_DB key
	Type string // queue type of the source; empty if untyped
}

// Descriptor says how a row's value is computed. A row with Fixed set
// always reports Value. Otherwise the value is the sum of the selected field
// over Sources; a LAG row (Group) has one source per member interface.
type Descriptor struct {
	Entity  uint32
	Group   bool
	Sources []Source
	Fixed   bool
	Value   uint64
}

// Selector picks the field a column reads and, optionally, the queue type a
// source must have for the field to apply.
type Selector struct {
	Field    string
	WantType string
}

// Snapshot is one immutable view of a table: its rows and every counter
// hash those rows may read. ID, Generation and Taken are stamped by the
// table when the snapshot is published.
type Snapshot struct {
	ID         uuid.UUID
	Generation uint64
	Taken      time.Time

	Rows     Rows
	Counters map[string]map[string]string

	// Describe returns the descriptor of any addressable suffix. It may
	// accept suffixes that are not walked, such as counter kinds that do not
	// apply to a queue's type.
	Describe func(suffix oid.OID) (Descriptor, bool)
}

// IndexSnapshot returns a snapshot whose rows and descriptors both come
// from x.
func IndexSnapshot(x *Index, counters map[string]map[string]string) *Snapshot {
	return &Snapshot{
		Rows:     x,
		Counters: counters,
		Describe: x.Lookup,
	}
}

// Miss records a source that had no usable value for a field.
type Miss struct {
	Source Source
	Field  string
}

// Resolve computes a row value from the snapshot's cached counters. Sources
// of the wrong type contribute 0 silently. Sources with a missing or
// unparsable field contribute 0 and are reported in misses. Resolve never
// performs I/O and returns the same result for the same snapshot.
func Resolve(s *Snapshot, d Descriptor, sel Selector) (value uint64, misses []Miss) {
	if d.Fixed {
		return d.Value, nil
	}
	for _, src := range d.Sources {
		if sel.WantType != "" && src.Type != sel.WantType {
			continue
		}
		raw, ok := s.Counters[src.Key][sel.Field]
		if !ok {
			misses = append(misses, Miss{Source: src, Field: sel.Field})
			continue
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			misses = append(misses, Miss{Source: src, Field: sel.Field})
			continue
		}
		value += n
	}
	return value, misses
}
