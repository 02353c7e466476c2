package mib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/mibagent/internal/topology"
	"github.com/HerbHall/mibagent/pkg/countersdb"
)

func TestEntities(t *testing.T) {
	topo := &topology.Topology{
		Interfaces: []topology.Interface{
			{Index: 1, Name: "Ethernet0", StorageID: "oid:0x1"},
			{Index: 5, Name: "Ethernet4", StorageID: "oid:0x5"},
			{Index: 1001, Name: "Ethernet1000", StorageID: "oid:0x3e9"},
		},
		LAGs: []topology.LAG{
			{Index: 1002, Name: "PortChannel02", Members: []string{"Ethernet0", "Ethernet99"}},
			{Index: 1001, Name: "PortChannel01", Members: []string{"Ethernet4"}},
			{Index: 1003, Name: "PortChannel03"},
		},
	}

	ents := Entities(topo, zaptest.NewLogger(t))

	var idx []uint32
	for _, e := range ents {
		idx = append(idx, e.Index)
	}
	assert.Equal(t, []uint32{1, 5, 1001, 1002, 1003}, idx)

	assert.False(t, ents[2].Group, "interface wins an index collision")
	assert.Equal(t, "Ethernet1000", ents[2].Name)

	lag := ents[3]
	assert.True(t, lag.Group)
	require.Len(t, lag.Members, 1, "unknown member dropped")
	assert.Equal(t, "Ethernet0", lag.Members[0].Name)

	assert.Empty(t, ents[4].Members)
	assert.Empty(t, ents[4].PortSources())
}

func TestEntities_LAGCollisions(t *testing.T) {
	topo := &topology.Topology{
		Interfaces: []topology.Interface{{Index: 1, Name: "Ethernet0", StorageID: "oid:0x1"}},
		LAGs: []topology.LAG{
			{Index: 1001, Name: "PortChannel01", Members: []string{"Ethernet0"}},
			{Index: 1001, Name: "PortChannel1"},
		},
	}

	ents := Entities(topo, zaptest.NewLogger(t))
	require.Len(t, ents, 2)
	assert.Equal(t, "PortChannel01", ents[1].Name, "first LAG keeps the index")
	assert.Equal(t, []topology.Interface{topo.Interfaces[0]}, ents[1].Members)
}

func TestEntity_PortSources(t *testing.T) {
	e := Entity{Index: 1001, Name: "PortChannel01", Group: true, Members: []topology.Interface{
		{Index: 1, Name: "Ethernet0", StorageID: "oid:0x1"},
		{Index: 5, Name: "Ethernet4", StorageID: "oid:0x5"},
	}}
	assert.Equal(t, []Source{
		{Name: "Ethernet0", Key: countersdb.CounterKey("oid:0x1")},
		{Name: "Ethernet4", Key: countersdb.CounterKey("oid:0x5")},
	}, e.PortSources())
}
