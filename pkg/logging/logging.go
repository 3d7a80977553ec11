// Package logging builds the process-wide zap logger. Components pull
// scoped loggers via zap.S().With(...), so Init must run before anything
// else logs.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init configures a production JSON logger at the given level ("debug",
// "info", "warn", "error"; empty means info) and installs it globally.
func Init(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
