package secsearch

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the log section. The console format
// uses the development encoder, json the production one.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
		}

		level = l
	}

	var zc zap.Config
	switch cfg.Format {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("%w: log.format %q must be console or json", ErrInvalidConfig, cfg.Format)
	}

	zc.Level = zap.NewAtomicLevelAt(level)

	// stdout carries command output and the stdio protocol
	zc.OutputPaths = []string{"stderr"}

	return zc.Build()
}
