package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the ops HTTP server configuration.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9161)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("store.driver", "redis")
	v.SetDefault("store.redis.network", "unix")
	v.SetDefault("store.redis.address", "/var/run/redis/redis.sock")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.dial_timeout", "2s")
	v.SetDefault("store.sqlite.path", "./data/counters.db")

	v.SetDefault("refresh.interval", "5s")
	v.SetDefault("refresh.concurrency", 16)

	// Table defaults
	v.SetDefault("tables.csqIfQosGroupStatsTable.include_ingress", false)
	v.SetDefault("tables.cefcFRUPowerStatusTable.psuutil_path", "psuutil")
	v.SetDefault("tables.cefcFRUPowerStatusTable.probe_timeout", "5s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_ratio", 1.0)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mibagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mibagent")
	}

	// Environment variable support: MIBAGENT_SERVER_PORT=9162
	v.SetEnvPrefix("MIBAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
