package logger

import "go.uber.org/zap"

// Init builds the process-wide zap logger.
func Init() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
