// Package countersdb describes the key/value counter store the agent reads:
// the read-only client contract and the key naming conventions the switch
// software uses when it populates the store.
package countersdb

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// DB identifies a logical database inside the counter store.
type DB int

// Logical databases, numbered as the switch software numbers them.
const (
	ApplDB     DB = 0
	CountersDB DB = 2
	StateDB    DB = 6
)

func (d DB) String() string {
	switch d {
	case ApplDB:
		return "APPL_DB"
	case CountersDB:
		return "COUNTERS_DB"
	case StateDB:
		return "STATE_DB"
	default:
		return "DB" + strconv.Itoa(int(d))
	}
}

// Reader is the read-only counter store client consumed by the MIB engine.
//
// GetAll returns the field map stored at key. A key that does not exist yet
// yields a nil map and a nil error; errors are reserved for transport
// failures.
//
// Keys returns the keys matching a glob pattern ("LAG_TABLE:*").
type Reader interface {
	GetAll(ctx context.Context, db DB, key string) (map[string]string, error)
	Keys(ctx context.Context, db DB, pattern string) ([]string, error)
}

// Well-known hashes in COUNTERS_DB.
const (
	PortNameMap  = "COUNTERS_PORT_NAME_MAP"  // interface name -> "oid:0x..."
	QueueNameMap = "COUNTERS_QUEUE_NAME_MAP" // "<ifname>:<n>" -> "oid:0x..."
	QueueTypeMap = "COUNTERS_QUEUE_TYPE_MAP" // queue "oid:0x..." -> SAI_QUEUE_TYPE_*
)

// Key prefixes in APPL_DB.
const (
	LagTablePrefix       = "LAG_TABLE:"
	LagMemberTablePrefix = "LAG_MEMBER_TABLE:"
)

// Queue types recorded in COUNTERS_QUEUE_TYPE_MAP.
const (
	QueueTypeUnicast   = "SAI_QUEUE_TYPE_UNICAST"
	QueueTypeMulticast = "SAI_QUEUE_TYPE_MULTICAST"
	QueueTypeAll       = "SAI_QUEUE_TYPE_ALL"
)

// CounterKey returns the COUNTERS_DB key holding the counters of the object
// with the given storage id ("oid:0x1000000000002").
func CounterKey(storageID string) string {
	return "COUNTERS:" + storageID
}

// QueueName returns the COUNTERS_QUEUE_NAME_MAP field for the 0-based queue n
// of interface ifName.
func QueueName(ifName string, n int) string {
	return ifName + ":" + strconv.Itoa(n)
}

// SplitQueueName is the inverse of QueueName.
func SplitQueueName(s string) (ifName string, n int, ok bool) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return s[:i], n, true
}

// Interface name patterns and the OID index bases derived from them.
var (
	ethernetRE    = regexp.MustCompile(`^Ethernet(\d+)$`)
	portChannelRE = regexp.MustCompile(`^PortChannel(\d+)$`)
	mgmtRE        = regexp.MustCompile(`^eth(\d+)$`)
)

const (
	ethernetBase    = 1
	portChannelBase = 1000
	mgmtBase        = 10000
)

// IfIndex maps an interface or LAG name to its 1-based OID index:
// EthernetN -> N+1, PortChannelN -> N+1000, ethN -> N+10000.
// Unknown names report ok=false.
func IfIndex(name string) (index uint32, ok bool) {
	for _, p := range []struct {
		re   *regexp.Regexp
		base uint64
	}{
		{ethernetRE, ethernetBase},
		{portChannelRE, portChannelBase},
		{mgmtRE, mgmtBase},
	} {
		m := p.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil || n+p.base > 1<<32-1 {
			return 0, false
		}
		return uint32(n + p.base), true
	}
	return 0, false
}
