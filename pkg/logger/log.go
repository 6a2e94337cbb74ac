package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"region-system/pkg/config"
)

func NewLogger(cfg config.LogConfig) *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.DebugLevel)
	if cfg.Level != "" {
		if parsed, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	outputs := []string{"stdout"}
	if cfg.File != "" {
		// папку под лог-файл создаём заранее, иначе zap не стартует
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			outputs = append(outputs, cfg.File)
		}
	}

	dualConfig := zap.Config{
		Encoding:         "console",
		Level:            level,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}

	dualLogger, err := dualConfig.Build()
	if err != nil {
		panic(err)
	}

	return dualLogger
}
