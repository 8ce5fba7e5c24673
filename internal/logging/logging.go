// Package logging builds the category-scoped zap loggers used across the
// engine. Categories can be toggled individually in config so a noisy
// subsystem (position resolution fires per keystroke) can be silenced without
// losing replacement logs.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"textwarden/internal/config"
)

// Category names one engine subsystem.
type Category string

const (
	CategoryResolution  Category = "resolution"
	CategoryReplacement Category = "replacement"
	CategoryExclusion   Category = "exclusion"
	CategoryClipboard   Category = "clipboard"
	CategoryHost        Category = "host"
	CategoryConfig      Category = "config"
)

// Factory hands out category loggers backed by one zap core.
type Factory struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// NewFactory builds the root logger from config. Debug mode switches to the
// development encoder and debug level regardless of the configured level.
func NewFactory(cfg config.LoggingConfig) (*Factory, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.DebugMode {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	}
	root, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Factory{root: root, cfg: cfg}, nil
}

// NewNopFactory returns a factory whose loggers discard everything. Used in
// tests and as the fallback when logger construction fails.
func NewNopFactory() *Factory {
	return &Factory{root: zap.NewNop()}
}

// For returns the logger for a category. Disabled categories get a no-op
// logger so call sites never need to check.
func (f *Factory) For(cat Category) *zap.Logger {
	if f.cfg.Categories != nil {
		if enabled, ok := f.cfg.Categories[string(cat)]; ok && !enabled {
			return zap.NewNop()
		}
	}
	return f.root.Named(string(cat))
}

// Sync flushes buffered log entries.
func (f *Factory) Sync() {
	_ = f.root.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
