package mib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/mibagent/pkg/oid"
)

func buildIndex(t *testing.T, suffixes ...string) *Index {
	t.Helper()
	b := NewIndexBuilder(zaptest.NewLogger(t))
	for i, s := range suffixes {
		require.True(t, b.Add(oid.MustParse(s), Descriptor{Entity: uint32(i)}), s)
	}
	return b.Build()
}

func TestIndexBuilder_SortsNumerically(t *testing.T) {
	x := buildIndex(t, "10", "2", "1001", "1", "2.1")

	var got []string
	for s := range x.All() {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{"1", "2", "2.1", "10", "1001"}, got)
	assert.Equal(t, 5, x.Len())
}

func TestIndexBuilder_RejectsDuplicates(t *testing.T) {
	b := NewIndexBuilder(zaptest.NewLogger(t))
	assert.True(t, b.Add(oid.OID{1, 2}, Descriptor{Entity: 1}))
	assert.False(t, b.Add(oid.OID{1, 2}, Descriptor{Entity: 2}))
	x := b.Build()

	require.Equal(t, 1, x.Len())
	d, ok := x.Lookup(oid.OID{1, 2})
	require.True(t, ok)
	assert.Equal(t, uint32(1), d.Entity, "first descriptor wins")
}

func TestIndexBuilder_AddCopiesSuffix(t *testing.T) {
	b := NewIndexBuilder(zaptest.NewLogger(t))
	s := oid.OID{1, 2}
	b.Add(s, Descriptor{})
	s[1] = 9
	x := b.Build()

	_, ok := x.Lookup(oid.OID{1, 2})
	assert.True(t, ok)
}

func TestIndex_Next(t *testing.T) {
	x := buildIndex(t, "1", "5", "1001")

	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{"", "1", true},
		{"0", "1", true},
		{"1", "5", true},
		{"1.7", "5", true}, // longer than any row, still between 1 and 5
		{"3", "5", true},   // not a member
		{"5", "1001", true},
		{"1001", "", false},
		{"1001.1", "", false},
		{"2000", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := x.Next(oid.MustParse(tt.query))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestIndex_Empty(t *testing.T) {
	x := NewIndexBuilder(zaptest.NewLogger(t)).Build()

	_, ok := x.First()
	assert.False(t, ok)
	_, ok = x.Next(nil)
	assert.False(t, ok)
	_, ok = x.Lookup(oid.OID{1})
	assert.False(t, ok)
	assert.Zero(t, x.Len())
}

func TestIndex_TotalOrder(t *testing.T) {
	x := buildIndex(t, "7.2", "1.1", "7.1", "3", "1.2", "1001.1")

	var walked []oid.OID
	s, ok := x.Next(nil)
	for ok {
		walked = append(walked, s)
		s, ok = x.Next(s)
	}
	require.Len(t, walked, x.Len())
	for i := 1; i < len(walked); i++ {
		assert.Negative(t, oid.Compare(walked[i-1], walked[i]), "%s before %s", walked[i-1], walked[i])
	}
}
