package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"projecthub/pkg/trace"
)

var Log *zap.Logger

// NewLogger builds the process logger. LOG_LEVEL=debug switches to the
// development encoder, any other recognised level only adjusts the threshold.
func NewLogger() *zap.Logger {
	level := strings.ToLower(os.Getenv("LOG_LEVEL"))

	var (
		l   *zap.Logger
		err error
	)
	if level == "debug" {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		if level != "" {
			var lvl zapcore.Level
			if uerr := lvl.UnmarshalText([]byte(level)); uerr == nil {
				cfg.Level = zap.NewAtomicLevelAt(lvl)
			}
		}
		l, err = cfg.Build()
	}
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String(trace.TraceIDKey, traceID))
	}
	return logger
}
