// Package plugin provides the public SDK types for mibagent table modules.
// Every MIB table served by the agent (built-in or vendor) implements these
// interfaces.
package plugin

import (
	"context"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/pkg/countersdb"
	"github.com/HerbHall/mibagent/pkg/oid"
)

// API version constants for plugin compatibility checking.
// The registry rejects plugins outside the supported range.
const (
	APIVersionMin     = 1 // Oldest Plugin API version this agent supports
	APIVersionCurrent = 1 // Current Plugin API version
)

// Plugin defines the lifecycle every table module implements.
type Plugin interface {
	// Info returns the plugin's metadata.
	Info() PluginInfo

	// Init initializes the plugin with its dependencies.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins the plugin's background refresh.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the plugin.
	Stop(ctx context.Context) error
}

// MIB is a plugin that serves one OID subtree.
type MIB interface {
	Plugin

	// Prefix returns the absolute OID of the subtree.
	Prefix() oid.OID

	// Get answers a point query. Names outside the table's columns yield
	// NoSuchObject; unknown rows yield NoSuchInstance.
	Get(ctx context.Context, name oid.OID) gosnmp.SnmpPDU

	// GetNext returns the first instance strictly after name, or false if
	// the subtree holds nothing after it.
	GetNext(ctx context.Context, name oid.OID) (gosnmp.SnmpPDU, bool)

	// Refresh rebuilds the table snapshot now.
	Refresh(ctx context.Context) error

	// Status reports the table's snapshot state.
	Status() TableStatus
}

// Validator is implemented by plugins that check their configuration after
// Init. A failing required plugin stops the agent; an optional one is
// disabled.
type Validator interface {
	ValidateConfig() error
}

// PluginInfo contains plugin metadata.
type PluginInfo struct {
	Name        string // MIB table name: "cpfcIfTable", "csqIfQosGroupStatsTable"
	Version     string // Semantic version string
	Description string // Human-readable summary
	Prefix      string // Absolute OID prefix in dotted form
	Required    bool   // If true, the agent refuses to start without this plugin
	APIVersion  int    // Plugin API version targeted (currently 1)
}

// Dependencies provides controlled access to shared services.
// Injected by the registry during Init.
type Dependencies struct {
	Config Config            // Scoped to this plugin's config section
	Logger *zap.Logger       // Named logger for this plugin
	Bus    EventBus          // Event publish/subscribe
	Store  countersdb.Reader // Counter store client
}

// TableStatus summarizes a table for operators.
type TableStatus struct {
	Name       string    `json:"name"`
	Prefix     string    `json:"prefix"`
	Ready      bool      `json:"ready"`
	Rows       int       `json:"rows"`
	Generation uint64    `json:"generation"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Taken      time.Time `json:"taken,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// Config abstracts configuration access. Wraps Viper today, replaceable later.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
}

// Publisher sends events to the bus. Use this thin interface in code
// that only needs to emit events (follows io.Writer pattern).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the bus. Use this thin interface in
// code that only needs to listen for events (follows io.Reader pattern).
type Subscriber interface {
	Subscribe(topic string, handler EventHandler) (unsubscribe func())
}

// EventBus provides publish/subscribe between tables and the ops surface.
// Composes Publisher and Subscriber with async and wildcard extensions.
type EventBus interface {
	Publisher
	Subscriber
	PublishAsync(ctx context.Context, event Event)
	SubscribeAll(handler EventHandler) (unsubscribe func())
}

// Event represents a typed message on the event bus.
type Event struct {
	Topic     string
	Source    string // Plugin name that emitted the event
	Timestamp time.Time
	Payload   any // Type depends on topic
}

// EventHandler processes events from the bus.
type EventHandler func(ctx context.Context, event Event)
