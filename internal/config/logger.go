package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/mibagent/internal/version"
)

// NewLogger builds the agent's root logger from the logging section:
//
//	logging.level     debug, info, warn, error (default info)
//	logging.format    json or console (default json)
//	logging.output    stderr, stdout, or a file path (default stderr)
//	logging.sampling  sample repetitive entries (default true for json)
//
// Every entry carries the agent version.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	var level zapcore.Level
	if raw := v.GetString("logging.level"); raw != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", raw, err)
		}
	}

	var cfg zap.Config
	switch format := v.GetString("logging.format"); format {
	case "json", "":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if v.IsSet("logging.sampling") && !v.GetBool("logging.sampling") {
		cfg.Sampling = nil
	}
	if out := v.GetString("logging.output"); out != "" {
		cfg.OutputPaths = []string{out}
	}
	cfg.InitialFields = map[string]any{"version": version.Short()}

	return cfg.Build()
}
