package mib

import (
	"iter"
	"slices"

	"github.com/HerbHall/mibagent/pkg/oid"
)

// Dimension returns the ascending coordinates valid at one position of a
// row suffix, given the coordinates already chosen to its left. Ranges may
// differ per row: one interface can have four queues and the next two.
type Dimension func(prefix oid.OID) []uint32

// Fixed returns a dimension with the same coordinates for every row.
func Fixed(coords ...uint32) Dimension {
	c := slices.Clone(coords)
	slices.Sort(c)
	return func(oid.OID) []uint32 { return c }
}

// Span returns the fixed dimension lo..hi inclusive.
func Span(lo, hi uint32) Dimension {
	if hi < lo {
		return Fixed()
	}
	c := make([]uint32, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		c = append(c, v)
	}
	return Fixed(c...)
}

// Walker enumerates the cross product of its dimensions in lexicographic
// order without materializing it. Next works like an odometer: the rightmost
// coordinate advances within its current range, and when it runs out the
// position to its left advances and every position to the right restarts at
// the minimum of its new range.
type Walker struct {
	dims []Dimension
}

// Compile-time interface guard.
var _ Rows = (*Walker)(nil)

// NewWalker returns a walker over the given dimensions, outermost first.
func NewWalker(dims ...Dimension) *Walker {
	return &Walker{dims: dims}
}

// First returns the smallest suffix.
func (w *Walker) First() (oid.OID, bool) {
	return w.first(make(oid.OID, 0, len(w.dims)))
}

// Next returns the smallest suffix strictly greater than suffix.
func (w *Walker) Next(suffix oid.OID) (oid.OID, bool) {
	return w.seek(make(oid.OID, 0, len(w.dims)), suffix)
}

// Contains reports whether suffix is a complete, in-range row.
func (w *Walker) Contains(suffix oid.OID) bool {
	if len(suffix) != len(w.dims) {
		return false
	}
	for d := range w.dims {
		if _, ok := slices.BinarySearch(w.dims[d](suffix[:d]), suffix[d]); !ok {
			return false
		}
	}
	return true
}

// Len counts the rows by enumerating them.
func (w *Walker) Len() int {
	n := 0
	for range w.All() {
		n++
	}
	return n
}

// All iterates every row in order.
func (w *Walker) All() iter.Seq[oid.OID] {
	return func(yield func(oid.OID) bool) {
		s, ok := w.First()
		for ok {
			if !yield(s) {
				return
			}
			s, ok = w.Next(s)
		}
	}
}

// first returns the smallest complete row starting with prefix.
func (w *Walker) first(prefix oid.OID) (oid.OID, bool) {
	d := len(prefix)
	if d == len(w.dims) {
		return prefix.Clone(), true
	}
	for _, c := range w.dims[d](prefix) {
		if s, ok := w.first(append(prefix, c)); ok {
			return s, true
		}
	}
	return nil, false
}

// seek returns the smallest complete row starting with prefix whose
// remaining coordinates compare greater than rest.
func (w *Walker) seek(prefix, rest oid.OID) (oid.OID, bool) {
	d := len(prefix)
	if d == len(w.dims) {
		// The query equals or extends this row.
		return nil, false
	}
	if len(rest) == 0 {
		// Every row below prefix is longer than the query, hence greater.
		return w.first(prefix)
	}
	coords := w.dims[d](prefix)
	i, _ := slices.BinarySearch(coords, rest[0])
	for ; i < len(coords); i++ {
		c := coords[i]
		var (
			s  oid.OID
			ok bool
		)
		if c == rest[0] {
			s, ok = w.seek(append(prefix, c), rest[1:])
		} else {
			s, ok = w.first(append(prefix, c))
		}
		if ok {
			return s, true
		}
	}
	return nil, false
}
