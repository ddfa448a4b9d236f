package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLevel accepts debug, info, warn, error (case-insensitive).
func ParseLevel(value string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logLevel %q must be one of debug, info, warn, error", value)
	}
}
