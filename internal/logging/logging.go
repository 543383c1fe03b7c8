// Package logging builds the structured logger shared by the VM factory,
// the check runner, and every built-in module.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger writing JSON to stderr. verbose forces debug
// level; otherwise the level follows the ASSAY_LOG env var ("debug", "info",
// "warn", "error"), defaulting to info.
func New(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	} else if v, ok := os.LookupEnv("ASSAY_LOG"); ok {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	return zap.New(core)
}
