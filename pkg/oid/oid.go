// Package oid provides the object identifier type shared by the MIB engine,
// the table registry, and the table plugins.
package oid

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// OID is an ordered tuple of non-negative sub-identifiers. It is used both for
// absolute object identifiers and for row suffixes relative to a table column.
type OID []uint32

// Parse converts a dotted string such as "1.3.6.1" or ".1.3.6.1" to an OID.
// The empty string parses to an empty OID.
func Parse(s string) (OID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "" {
		return OID{}, nil
	}
	parts := strings.Split(s, ".")
	o := make(OID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid sub-identifier %q in %q: %w", p, s, err)
		}
		o = append(o, uint32(n))
	}
	return o, nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// OID constants.
func MustParse(s string) OID {
	o, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return o
}

// String renders the OID in dotted form without a leading dot.
func (o OID) String() string {
	if len(o) == 0 {
		return ""
	}
	var b strings.Builder
	for i, n := range o {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(n), 10))
	}
	return b.String()
}

// Dotted renders the OID with a leading dot, the form gosnmp uses for PDU names.
func (o OID) Dotted() string {
	return "." + o.String()
}

// Compare orders OIDs lexicographically by sub-identifier, a proper prefix
// sorting before any of its extensions. It returns -1, 0 or +1.
func Compare(a, b OID) int {
	return slices.Compare(a, b)
}

// Equal reports whether a and b contain the same sub-identifiers.
func (o OID) Equal(b OID) bool {
	return slices.Equal(o, b)
}

// HasPrefix reports whether p is a prefix of o (or equal to it).
func (o OID) HasPrefix(p OID) bool {
	return len(o) >= len(p) && slices.Equal(o[:len(p)], p)
}

// Append returns a new OID consisting of o followed by sub. The receiver is
// never modified.
func (o OID) Append(sub ...uint32) OID {
	out := make(OID, 0, len(o)+len(sub))
	out = append(out, o...)
	return append(out, sub...)
}

// Clone returns a copy of o.
func (o OID) Clone() OID {
	return slices.Clone(o)
}
