// Package logger builds the zap loggers used across the service.
package logger

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger writing one object per line to w.
// Timestamps are emitted under "ts" as RFC3339Nano in loc.
func New(w io.Writer, loc *time.Location) *zap.Logger {
	if loc == nil {
		loc = time.UTC
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(time.RFC3339Nano))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(levelFromEnv()),
	)
	return zap.New(core, zap.AddCaller())
}

// NewStdout is New bound to os.Stdout.
func NewStdout(loc *time.Location) *zap.Logger {
	return New(os.Stdout, loc)
}

func levelFromEnv() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
