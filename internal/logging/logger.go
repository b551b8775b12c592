package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"securewipe_enterprise/internal/config"
)

// New builds the process logger from config. When a log file is configured
// but cannot be created, logging falls back to stdout instead of failing
// the run: erasure must not depend on a writable log path.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Structured {
		zc.Encoding = "json"
	} else {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	zc.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			zc.OutputPaths = append(zc.OutputPaths, cfg.File)
		}
	}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
