package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 按 log.level 构建 zap 日志 (输出到 stderr)
func NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg.Build()
}
