package vajrastream

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ============================================================================
// Logging
// ============================================================================

// LogConfig controls construction of a client logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Development switches to the console encoder with caller annotations.
	Development bool
}

// NewLogger builds a zap logger for use with WithLogger or
// StreamConfig.Logger. Clients default to zap.NewNop when none is supplied.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// NewDefaultLogger returns a production logger, falling back to a no-op
// logger if construction fails.
func NewDefaultLogger() *zap.Logger {
	logger, err := NewLogger(LogConfig{})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
