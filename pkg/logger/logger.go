// Package logger provides zap logger construction based on the environment.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger configured for the given environment.
// "production" gets a JSON logger at Info level; everything else gets a
// human-readable development logger at Debug level.
func New(env string) *zap.Logger {
	var cfg zap.Config

	switch env {
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	log, err := cfg.Build()
	if err != nil {
		// A broken logger config is unrecoverable at startup.
		panic("failed to build zap logger: " + err.Error())
	}

	return log
}
