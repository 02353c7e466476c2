package testutil

import (
	"fmt"

	"github.com/HerbHall/mibagent/internal/counterstore"
	"github.com/HerbHall/mibagent/pkg/countersdb"
)

// NewSwitch returns an in-memory counter store populated the way the switch
// software populates it. With no options the store is empty but valid.
func NewSwitch(opts ...func(*counterstore.Memory)) *counterstore.Memory {
	m := counterstore.NewMemory()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PortSID returns the storage id the fixtures assign to port name.
func PortSID(name string) string { return "oid:port:" + name }

// QueueSID returns the storage id the fixtures assign to 0-based queue n of port name.
func QueueSID(name string, n int) string { return fmt.Sprintf("oid:queue:%s:%d", name, n) }

// WithPort registers a port in COUNTERS_PORT_NAME_MAP.
func WithPort(name string) func(*counterstore.Memory) {
	return func(m *counterstore.Memory) {
		m.HSet(countersdb.CountersDB, countersdb.PortNameMap, map[string]string{name: PortSID(name)})
	}
}

// WithPortCounters sets counter fields of a port.
func WithPortCounters(name string, fields map[string]string) func(*counterstore.Memory) {
	return func(m *counterstore.Memory) {
		m.HSet(countersdb.CountersDB, countersdb.CounterKey(PortSID(name)), fields)
	}
}

// WithQueue registers 0-based queue n of port name with the given queue
// type. An empty type leaves COUNTERS_QUEUE_TYPE_MAP untouched.
func WithQueue(name string, n int, queueType string) func(*counterstore.Memory) {
	return func(m *counterstore.Memory) {
		sid := QueueSID(name, n)
		m.HSet(countersdb.CountersDB, countersdb.QueueNameMap, map[string]string{countersdb.QueueName(name, n): sid})
		if queueType != "" {
			m.HSet(countersdb.CountersDB, countersdb.QueueTypeMap, map[string]string{sid: queueType})
		}
	}
}

// WithQueueCounters sets counter fields of queue n of port name.
func WithQueueCounters(name string, n int, fields map[string]string) func(*counterstore.Memory) {
	return func(m *counterstore.Memory) {
		m.HSet(countersdb.CountersDB, countersdb.CounterKey(QueueSID(name, n)), fields)
	}
}

// WithLAG registers a LAG in APPL_DB with the given member interfaces.
func WithLAG(name string, members ...string) func(*counterstore.Memory) {
	return func(m *counterstore.Memory) {
		m.HSet(countersdb.ApplDB, countersdb.LagTablePrefix+name, map[string]string{
			"admin_status": "up",
			"mtu":          "9100",
		})
		for _, member := range members {
			m.HSet(countersdb.ApplDB, countersdb.LagMemberTablePrefix+name+":"+member, map[string]string{
				"status": "enabled",
			})
		}
	}
}
