package mib

import (
	"iter"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/pkg/oid"
)

// Rows is an ordered set of row suffixes. Next returns the smallest member
// strictly greater than suffix; suffix itself need not be a member, and an
// empty suffix yields the first row.
type Rows interface {
	First() (oid.OID, bool)
	Next(suffix oid.OID) (oid.OID, bool)
	Len() int
}

// Row pairs a suffix with the descriptor that resolves it.
type Row struct {
	Suffix oid.OID
	Desc   Descriptor
}

// Index is an immutable, strictly increasing list of rows.
type Index struct {
	rows []Row
}

// Compile-time interface guard.
var _ Rows = (*Index)(nil)

// Len returns the number of rows.
func (x *Index) Len() int { return len(x.rows) }

// First returns the smallest suffix.
func (x *Index) First() (oid.OID, bool) {
	if len(x.rows) == 0 {
		return nil, false
	}
	return x.rows[0].Suffix, true
}

// Next returns the first suffix strictly greater than suffix.
func (x *Index) Next(suffix oid.OID) (oid.OID, bool) {
	i := sort.Search(len(x.rows), func(i int) bool {
		return oid.Compare(x.rows[i].Suffix, suffix) > 0
	})
	if i >= len(x.rows) {
		return nil, false
	}
	return x.rows[i].Suffix, true
}

// Lookup returns the descriptor of an exact suffix.
func (x *Index) Lookup(suffix oid.OID) (Descriptor, bool) {
	i, ok := slices.BinarySearchFunc(x.rows, suffix, func(r Row, s oid.OID) int {
		return oid.Compare(r.Suffix, s)
	})
	if !ok {
		return Descriptor{}, false
	}
	return x.rows[i].Desc, true
}

// All iterates the rows in order.
func (x *Index) All() iter.Seq2[oid.OID, Descriptor] {
	return func(yield func(oid.OID, Descriptor) bool) {
		for _, r := range x.rows {
			if !yield(r.Suffix, r.Desc) {
				return
			}
		}
	}
}

// IndexBuilder accumulates rows in any order and produces an Index.
type IndexBuilder struct {
	rows   []Row
	seen   map[string]struct{}
	logger *zap.Logger
}

// NewIndexBuilder returns an empty builder. Rejected rows are logged to logger.
func NewIndexBuilder(logger *zap.Logger) *IndexBuilder {
	return &IndexBuilder{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Add records a row. A suffix that was already added is rejected and the
// first descriptor is kept.
func (b *IndexBuilder) Add(suffix oid.OID, desc Descriptor) bool {
	key := suffix.String()
	if _, dup := b.seen[key]; dup {
		b.logger.Warn("duplicate row rejected", zap.String("suffix", key))
		return false
	}
	b.seen[key] = struct{}{}
	b.rows = append(b.rows, Row{Suffix: suffix.Clone(), Desc: desc})
	return true
}

// Build sorts the accumulated rows and returns the index. The builder must
// not be used afterwards.
func (b *IndexBuilder) Build() *Index {
	slices.SortFunc(b.rows, func(a, c Row) int { return oid.Compare(a.Suffix, c.Suffix) })
	x := &Index{rows: b.rows}
	b.rows, b.seen = nil, nil
	return x
}
