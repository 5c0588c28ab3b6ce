package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Development mode uses the console encoder.
func New(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build(zap.Fields(zap.String("service", "seatsched")))
}

// Cron adapts a zap logger to the cron package's Info/Error logger interface.
type Cron struct{ L *zap.Logger }

func (c Cron) Info(msg string, keysAndValues ...any) {
	c.L.Sugar().Debugw(msg, keysAndValues...)
}

func (c Cron) Error(err error, msg string, keysAndValues ...any) {
	c.L.Sugar().Errorw(msg, append([]any{"error", err}, keysAndValues...)...)
}
