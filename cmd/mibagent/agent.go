package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/cisco"
	"github.com/HerbHall/mibagent/internal/config"
	"github.com/HerbHall/mibagent/internal/counterstore"
	"github.com/HerbHall/mibagent/internal/registry"
	"github.com/HerbHall/mibagent/pkg/countersdb"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// allTables lists every table the agent can serve (compile-time composition).
func allTables() []plugin.MIB {
	return []plugin.MIB{
		cisco.NewPowerStatus(),
		cisco.NewQosGroupStats(),
		cisco.NewPFCIf(),
		cisco.NewPFCIfPriority(),
	}
}

// newRegistry registers every table not disabled by tables.<name>.enabled
// and validates the result. It returns the names that were registered.
func newRegistry(v *viper.Viper, logger *zap.Logger) (*registry.Registry, []string, error) {
	reg := registry.New(logger.Named("registry"))
	var names []string
	for _, m := range allTables() {
		name := m.Info().Name
		if !config.Table(v, name).GetBool("enabled") {
			logger.Info("table disabled by configuration", zap.String("table", name))
			continue
		}
		if err := reg.Register(m); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
	}
	if err := reg.Validate(); err != nil {
		return nil, nil, err
	}
	return reg, names, nil
}

// initRegistry initializes every registered table with its scoped config.
func initRegistry(ctx context.Context, reg *registry.Registry, v *viper.Viper, logger *zap.Logger, bus plugin.EventBus, store countersdb.Reader) error {
	return reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config: config.Table(v, name),
			Logger: logger.Named(name),
			Bus:    bus,
			Store:  store,
		}
	})
}

// storeConfig reads the store section over the built-in defaults.
func storeConfig(v *viper.Viper) (counterstore.Config, error) {
	cfg := counterstore.DefaultConfig()
	if err := v.UnmarshalKey("store", &cfg); err != nil {
		return cfg, fmt.Errorf("decode store config: %w", err)
	}
	return cfg, nil
}
