// Package cisco implements the Cisco enterprise MIB tables served by the
// agent: QoS queue statistics, priority flow control counters, and power
// supply status.
package cisco

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/mib"
	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// errNoStore is returned by Init when a counter-backed table gets no store.
var errNoStore = errors.New("counter store is required")

// Config is the per-table configuration found under tables.<name>.
type Config struct {
	Interval       time.Duration `mapstructure:"interval"`
	Concurrency    int           `mapstructure:"concurrency"`
	IncludeIngress bool          `mapstructure:"include_ingress"`
	PSUUtilPath    string        `mapstructure:"psuutil_path"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
}

// DefaultConfig returns the configuration used for keys that are not set.
func DefaultConfig() Config {
	return Config{
		Interval:    mib.DefaultInterval,
		Concurrency: mib.DefaultReadConcurrency,
		PSUUtilPath: "psuutil",
	}
}

// updaterFactory builds a table's updater once its dependencies are known.
type updaterFactory func(deps plugin.Dependencies, cfg Config) (mib.Updater, error)

// module adapts a mib.Table to the plugin.MIB lifecycle.
type module struct {
	info    plugin.PluginInfo
	prefix  oid.OID
	columns []mib.Column
	build   updaterFactory

	cfg    Config
	logger *zap.Logger
	table  *mib.Table
	cancel context.CancelFunc
	done   chan struct{}
}

func newModule(name, description string, prefix oid.OID, columns []mib.Column, build updaterFactory) module {
	return module{
		info: plugin.PluginInfo{
			Name:        name,
			Version:     "0.1.0",
			Description: description,
			Prefix:      prefix.String(),
			APIVersion:  plugin.APIVersionCurrent,
		},
		prefix:  prefix,
		columns: columns,
		build:   build,
		cfg:     DefaultConfig(),
	}
}

func (m *module) Info() plugin.PluginInfo { return m.info }

func (m *module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	cfg := DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("%s: parse config: %w", m.info.Name, err)
		}
	}
	m.cfg = cfg

	upd, err := m.build(deps, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", m.info.Name, err)
	}

	m.table = mib.NewTable(m.info.Name, m.prefix, m.columns, upd, mib.Options{
		Logger:   m.logger,
		Bus:      deps.Bus,
		Interval: cfg.Interval,
	})
	m.logger.Debug("table initialized",
		zap.String("prefix", m.info.Prefix),
		zap.Duration("interval", m.table.Interval()),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *module) ValidateConfig() error {
	if m.cfg.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", m.cfg.Interval)
	}
	if m.cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", m.cfg.Concurrency)
	}
	return nil
}

func (m *module) Start(_ context.Context) error {
	if m.table == nil {
		return fmt.Errorf("%s: start before init", m.info.Name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		m.table.Run(ctx)
	}()
	return nil
}

func (m *module) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	m.table.Stop()
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *module) Prefix() oid.OID { return m.prefix }

func (m *module) Get(ctx context.Context, name oid.OID) gosnmp.SnmpPDU {
	if m.table == nil {
		return gosnmp.SnmpPDU{Name: name.Dotted(), Type: gosnmp.NoSuchObject}
	}
	return m.table.Get(ctx, name)
}

func (m *module) GetNext(ctx context.Context, name oid.OID) (gosnmp.SnmpPDU, bool) {
	if m.table == nil {
		return gosnmp.SnmpPDU{}, false
	}
	return m.table.GetNext(ctx, name)
}

func (m *module) Refresh(ctx context.Context) error {
	if m.table == nil {
		return fmt.Errorf("%s: refresh before init", m.info.Name)
	}
	return m.table.Refresh(ctx)
}

func (m *module) Status() plugin.TableStatus {
	if m.table == nil {
		return plugin.TableStatus{Name: m.info.Name, Prefix: m.info.Prefix}
	}
	return m.table.Status()
}

// Table exposes the underlying table, mainly for tests.
func (m *module) Table() *mib.Table { return m.table }
