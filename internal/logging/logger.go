// Package logging builds the zap loggers hydrctl and the engine share.
// Output is categorized per subsystem; categories can be silenced
// individually through config so a noisy barrier investigation does not
// drown bridge traffic.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // CLI startup, config resolution
	CategoryBarrier Category = "barrier" // persisted-cell readiness waits
	CategoryHydrate Category = "hydrate" // validation and cell application
	CategoryBridge  Category = "bridge"  // driver-side target traffic
	CategoryReplay  Category = "replay"  // replay guard reads and writes
)

// Config controls logger construction.
type Config struct {
	// Debug switches to the development encoder at debug level.
	Debug bool `json:"debug"`
	// Level is the minimum level when Debug is off: debug, info, warn,
	// error. Empty means info.
	Level string `json:"level"`
	// Categories silences subsystems mapped to false. Empty means all
	// enabled.
	Categories map[string]bool `json:"categories"`
}

var (
	mu      sync.Mutex
	root    *zap.Logger
	current Config
)

// Initialize builds the process root logger. Call once at startup; Get
// before Initialize hands out no-op loggers.
func Initialize(cfg Config) error {
	logger, err := build(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	root = logger
	current = cfg
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	if cfg.Debug {
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return zc.Build()
	}
	zc := zap.NewProductionConfig()
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// Get returns the named logger for a category, or a no-op logger when the
// category is disabled or Initialize has not run.
func Get(cat Category) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		return zap.NewNop()
	}
	if current.Categories != nil {
		if enabled, ok := current.Categories[string(cat)]; ok && !enabled {
			return zap.NewNop()
		}
	}
	return root.Named(string(cat))
}

// Sync flushes buffered log entries. Safe to call with no root logger.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if root != nil {
		_ = root.Sync()
	}
}
