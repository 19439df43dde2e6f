// Package log wires the engine's structured logging. One *zap.Logger is built
// at session start and threaded through every subsystem as a field; nothing
// in this codebase reaches for a package-global logger.
package log

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the root logger is constructed.
type Config struct {
	// Level is the default verbosity (debug, info, warn, error).
	Level string
	// ModuleLevels raises Level for specific module names (LOG_<MODULE>);
	// ForModule applies it with zap.IncreaseLevel, so it cannot lower a
	// module below Level.
	ModuleLevels map[string]string
	// Dir, if set, writes logs to <Dir>/engine.log instead of stderr.
	Dir string
}

// New builds the root logger described by cfg.
func New(cfg Config) (*zap.Logger, error) {
	level := parseLevel(cfg.Level, zapcore.InfoLevel)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	var encoder zapcore.Encoder
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join(cfg.Dir, "engine.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(f)
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		sink = zapcore.AddSync(os.Stderr)
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core), nil
}

// ForModule returns a child logger scoped to module, applying any
// LOG_<MODULE> override from cfg on top of the root level.
func ForModule(base *zap.Logger, cfg Config, module string) *zap.Logger {
	l := base.With(zap.String("module", module))
	if override, ok := cfg.ModuleLevels[strings.ToUpper(module)]; ok {
		lvl := parseLevel(override, zapcore.InfoLevel)
		l = l.WithOptions(zap.IncreaseLevel(lvl))
	}
	return l
}

func parseLevel(s string, def zapcore.Level) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return def
	}
	return lvl
}
