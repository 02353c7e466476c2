package cisco_test

import (
	"context"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/mibagent/internal/cisco"
	"github.com/HerbHall/mibagent/internal/counterstore"
	"github.com/HerbHall/mibagent/internal/testutil"
	"github.com/HerbHall/mibagent/pkg/oid"
)

func pfcSwitch() *counterstore.Memory {
	return testutil.NewSwitch(
		testutil.WithPort("Ethernet0"),
		testutil.WithPort("Ethernet4"),
		testutil.WithPort("Ethernet8"),
		testutil.WithPortCounters("Ethernet0", map[string]string{
			"SAI_PORT_STAT_PFC_0_RX_PKTS": "10",
			"SAI_PORT_STAT_PFC_3_RX_PKTS": "30",
			"SAI_PORT_STAT_PFC_3_TX_PKTS": "31",
			"SAI_PORT_STAT_PFC_7_TX_PKTS": "71",
		}),
		testutil.WithPortCounters("Ethernet4", map[string]string{
			"SAI_PORT_STAT_PFC_3_RX_PKTS": "3",
			"SAI_PORT_STAT_PFC_7_TX_PKTS": "7",
		}),
		testutil.WithLAG("PortChannel2", "Ethernet0", "Ethernet4"),
	)
}

func TestPFCIf_Walk(t *testing.T) {
	m := cisco.NewPFCIf()
	initMIB(t, m, pfcSwitch(), nil)

	requests := cisco.PrefixPFCIf.Append(1, 1)
	indications := cisco.PrefixPFCIf.Append(1, 2)

	pdus := walk(t, m)
	assert.Equal(t, []string{
		requests.Append(1).Dotted(),
		requests.Append(5).Dotted(),
		requests.Append(9).Dotted(),
		requests.Append(1002).Dotted(),
		indications.Append(1).Dotted(),
		indications.Append(5).Dotted(),
		indications.Append(9).Dotted(),
		indications.Append(1002).Dotted(),
	}, names(pdus))

	values := make([]any, len(pdus))
	for i, p := range pdus {
		values[i] = p.Value
	}
	assert.Equal(t, []any{
		uint64(30), uint64(3), uint64(0), uint64(33),
		uint64(31), uint64(0), uint64(0), uint64(31),
	}, values)
}

func TestPFCIf_Get(t *testing.T) {
	m := cisco.NewPFCIf()
	initMIB(t, m, pfcSwitch(), nil)
	ctx := context.Background()

	pdu := m.Get(ctx, cisco.PrefixPFCIf.Append(1, 1, 1002))
	assert.Equal(t, gosnmp.Counter64, pdu.Type)
	assert.Equal(t, uint64(33), pdu.Value)

	pdu = m.Get(ctx, cisco.PrefixPFCIf.Append(1, 1, 2))
	assert.Equal(t, gosnmp.NoSuchInstance, pdu.Type)

	pdu = m.Get(ctx, cisco.PrefixPFCIf.Append(1, 3, 1))
	assert.Equal(t, gosnmp.NoSuchObject, pdu.Type)
}

func TestPFCIfPriority_WalkRollsOverPriorities(t *testing.T) {
	store := testutil.NewSwitch(
		testutil.WithPort("Ethernet0"),
		testutil.WithPort("Ethernet4"),
	)
	m := cisco.NewPFCIfPriority()
	initMIB(t, m, store, nil)

	requests := cisco.PrefixPFCIfPriority.Append(1, 2)
	indications := cisco.PrefixPFCIfPriority.Append(1, 3)

	var want []string
	for _, col := range []oid.OID{requests, indications} {
		for _, ifIndex := range []uint32{1, 5} {
			for p := uint32(1); p <= 8; p++ {
				want = append(want, col.Append(ifIndex, p).Dotted())
			}
		}
	}
	assert.Equal(t, want, names(walk(t, m)))

	// GetNext from the last priority of an interface carries to the next one.
	pdu, ok := m.GetNext(context.Background(), requests.Append(1, 8))
	require.True(t, ok)
	assert.Equal(t, requests.Append(5, 1).Dotted(), pdu.Name)

	// Off-grid probes land on the next valid row.
	pdu, ok = m.GetNext(context.Background(), requests.Append(1, 9))
	require.True(t, ok)
	assert.Equal(t, requests.Append(5, 1).Dotted(), pdu.Name)

	pdu, ok = m.GetNext(context.Background(), requests.Append(2))
	require.True(t, ok)
	assert.Equal(t, requests.Append(5, 1).Dotted(), pdu.Name)

	pdu, ok = m.GetNext(context.Background(), requests.Append(5, 8))
	require.True(t, ok)
	assert.Equal(t, indications.Append(1, 1).Dotted(), pdu.Name)

	_, ok = m.GetNext(context.Background(), indications.Append(5, 8))
	assert.False(t, ok)
}

func TestPFCIfPriority_Values(t *testing.T) {
	m := cisco.NewPFCIfPriority()
	initMIB(t, m, pfcSwitch(), nil)
	ctx := context.Background()

	requests := cisco.PrefixPFCIfPriority.Append(1, 2)
	indications := cisco.PrefixPFCIfPriority.Append(1, 3)

	tests := []struct {
		name     string
		target   oid.OID
		wantType gosnmp.Asn1BER
		want     any
	}{
		{"priority 1 maps to PFC_0", requests.Append(1, 1), gosnmp.Counter64, uint64(10)},
		{"priority 4 maps to PFC_3", requests.Append(1, 4), gosnmp.Counter64, uint64(30)},
		{"priority 8 transmit", indications.Append(1, 8), gosnmp.Counter64, uint64(71)},
		{"LAG sums members", indications.Append(1002, 8), gosnmp.Counter64, uint64(78)},
		{"member without the field", requests.Append(5, 1), gosnmp.Counter64, uint64(0)},
		{"priority 0", requests.Append(1, 0), gosnmp.NoSuchInstance, nil},
		{"priority 9", requests.Append(1, 9), gosnmp.NoSuchInstance, nil},
		{"unknown interface", requests.Append(2, 1), gosnmp.NoSuchInstance, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pdu := m.Get(ctx, tc.target)
			assert.Equal(t, tc.wantType, pdu.Type)
			assert.Equal(t, tc.want, pdu.Value)
		})
	}
}
