package cisco

import "github.com/HerbHall/mibagent/pkg/oid"

// Table prefixes.
var (
	// CISCO-SWITCH-QOS-MIB csqIfQosGroupStatsTable
	PrefixQosGroupStats = oid.MustParse("1.3.6.1.4.1.9.9.580.1.5.5")
	// CISCO-PFC-EXT-MIB cpfcIfTable
	PrefixPFCIf = oid.MustParse("1.3.6.1.4.1.9.9.813.1.1")
	// CISCO-PFC-EXT-MIB cpfcIfPriorityTable
	PrefixPFCIfPriority = oid.MustParse("1.3.6.1.4.1.9.9.813.1.2")
	// CISCO-ENTITY-FRU-CONTROL-MIB cefcFRUPowerStatusTable
	PrefixFRUPowerStatus = oid.MustParse("1.3.6.1.4.1.9.9.117.1.1.2")
)

// Table names, used as plugin names and config keys.
const (
	NameQosGroupStats  = "csqIfQosGroupStatsTable"
	NamePFCIf          = "cpfcIfTable"
	NamePFCIfPriority  = "cpfcIfPriorityTable"
	NameFRUPowerStatus = "cefcFRUPowerStatusTable"
)

// Names lists every table this package provides.
var Names = []string{NameQosGroupStats, NamePFCIf, NamePFCIfPriority, NameFRUPowerStatus}
