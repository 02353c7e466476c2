package mib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/mibagent/pkg/countersdb"
)

func testSnapshot() *Snapshot {
	return &Snapshot{Counters: map[string]map[string]string{
		"COUNTERS:a": {"SAI_PORT_STAT_PFC_3_RX_PKTS": "100", "BAD": "x"},
		"COUNTERS:b": {"SAI_PORT_STAT_PFC_3_RX_PKTS": "23"},
		"COUNTERS:q": {"SAI_QUEUE_STAT_PACKETS": "7"},
	}}
}

func TestResolve_Single(t *testing.T) {
	v, misses := Resolve(testSnapshot(),
		Descriptor{Sources: []Source{{Name: "Ethernet0", Key: "COUNTERS:a"}}},
		Selector{Field: "SAI_PORT_STAT_PFC_3_RX_PKTS"},
	)
	assert.Equal(t, uint64(100), v)
	assert.Empty(t, misses)
}

func TestResolve_GroupSumsMembers(t *testing.T) {
	d := Descriptor{Group: true, Sources: []Source{
		{Name: "Ethernet0", Key: "COUNTERS:a"},
		{Name: "Ethernet4", Key: "COUNTERS:b"},
	}}
	v, misses := Resolve(testSnapshot(), d, Selector{Field: "SAI_PORT_STAT_PFC_3_RX_PKTS"})
	assert.Equal(t, uint64(123), v)
	assert.Empty(t, misses)
}

func TestResolve_GroupMemberWithoutData(t *testing.T) {
	d := Descriptor{Group: true, Sources: []Source{
		{Name: "Ethernet0", Key: "COUNTERS:a"},
		{Name: "Ethernet8", Key: "COUNTERS:gone"},
	}}
	v, misses := Resolve(testSnapshot(), d, Selector{Field: "SAI_PORT_STAT_PFC_3_RX_PKTS"})
	assert.Equal(t, uint64(100), v, "a member with no data contributes 0")
	require.Len(t, misses, 1)
	assert.Equal(t, "Ethernet8", misses[0].Source.Name)
}

func TestResolve_MissingAndUnparsableFields(t *testing.T) {
	s := testSnapshot()
	src := []Source{{Name: "Ethernet0", Key: "COUNTERS:a"}}

	v, misses := Resolve(s, Descriptor{Sources: src}, Selector{Field: "SAI_PORT_STAT_PFC_7_RX_PKTS"})
	assert.Zero(t, v)
	assert.Len(t, misses, 1)

	v, misses = Resolve(s, Descriptor{Sources: src}, Selector{Field: "BAD"})
	assert.Zero(t, v)
	assert.Len(t, misses, 1)
}

func TestResolve_TypeMismatchIsZero(t *testing.T) {
	d := Descriptor{Sources: []Source{{Name: "Ethernet0", Key: "COUNTERS:q", Type: countersdb.QueueTypeUnicast}}}

	v, misses := Resolve(testSnapshot(), d, Selector{Field: "SAI_QUEUE_STAT_PACKETS", WantType: countersdb.QueueTypeMulticast})
	assert.Zero(t, v)
	assert.Empty(t, misses, "a type mismatch is not missing data")

	v, _ = Resolve(testSnapshot(), d, Selector{Field: "SAI_QUEUE_STAT_PACKETS", WantType: countersdb.QueueTypeUnicast})
	assert.Equal(t, uint64(7), v)
}

func TestResolve_Fixed(t *testing.T) {
	v, misses := Resolve(testSnapshot(), Descriptor{Fixed: true, Value: 1}, Selector{Field: "ignored"})
	assert.Equal(t, uint64(1), v)
	assert.Empty(t, misses)
}

func TestResolve_Idempotent(t *testing.T) {
	s := testSnapshot()
	d := Descriptor{Group: true, Sources: []Source{
		{Name: "Ethernet0", Key: "COUNTERS:a"},
		{Name: "Ethernet4", Key: "COUNTERS:b"},
	}}
	sel := Selector{Field: "SAI_PORT_STAT_PFC_3_RX_PKTS"}

	first, _ := Resolve(s, d, sel)
	for range 10 {
		v, _ := Resolve(s, d, sel)
		assert.Equal(t, first, v)
	}
}
