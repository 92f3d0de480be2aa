package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger, JSON for PRD and console output for DEV
func New(level string, appEnv string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if appEnv == "PRD" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Service tags every entry with the binary name
func Service(log *zap.Logger, name string) *zap.Logger {
	return log.With(zap.String("service", name))
}
