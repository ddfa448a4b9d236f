package app

import (
	"go.uber.org/zap"

	"lokkagw/internal/infra/telemetry"
)

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	Logger *zap.Logger
	// Level is the level the logger core was built with. Config reloads move
	// it unless LevelPinned is set.
	Level       *zap.AtomicLevel
	LevelPinned bool
}

// Logging bundles the logger and its adjustable level.
type Logging struct {
	Logger      *zap.Logger
	Level       *zap.AtomicLevel
	LevelPinned bool
}

// NewLogging constructs logging dependencies.
func NewLogging(cfg LoggingConfig) Logging {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return Logging{
		Logger:      logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCore)),
		Level:       cfg.Level,
		LevelPinned: cfg.LevelPinned,
	}
}

// NewLogger returns the logger from a Logging bundle.
func NewLogger(logging Logging) *zap.Logger {
	return logging.Logger
}
