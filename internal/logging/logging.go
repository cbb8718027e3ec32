// Package logging builds the structured logger used by the command line
// tools: zap underneath, exposed as a logr.Logger.
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels above info. logr V(n) maps to zap level -n.
const (
	DEBUG = 1
	TRACE = 2
)

// ParseLevel maps a level name to a zap level. Accepted: error, warn,
// info, debug, trace.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "trace":
		return zapcore.Level(-TRACE), nil
	}

	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// New returns a logger at the named level. Development mode writes
// human-readable console output with callers; otherwise JSON.
func New(level string, development bool) (logr.Logger, *zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = !development

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("logging: %w", err)
	}

	return zapr.NewLogger(zl), zl, nil
}
