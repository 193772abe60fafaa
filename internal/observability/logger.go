package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type LogConfig struct {
	Level   string
	Verbose bool
}

// Logger is a component-scoped wrapper around the process slog logger.
type Logger struct {
	base      *slog.Logger
	component string
}

func Init(cfg LogConfig) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Verbose,
	})
	logger := slog.New(handler).With("service", "portfolio-explainer")
	slog.SetDefault(logger)
	return logger
}

func Component(name string) *Logger {
	return &Logger{base: slog.Default(), component: name}
}

func (l *Logger) Debug(ctx context.Context, msg string, attrs ...any) {
	l.log(ctx, slog.LevelDebug, msg, attrs...)
}

func (l *Logger) Info(ctx context.Context, msg string, attrs ...any) {
	l.log(ctx, slog.LevelInfo, msg, attrs...)
}

func (l *Logger) Warn(ctx context.Context, msg string, attrs ...any) {
	l.log(ctx, slog.LevelWarn, msg, attrs...)
}

func (l *Logger) Error(ctx context.Context, msg string, attrs ...any) {
	l.log(ctx, slog.LevelError, msg, attrs...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	args := make([]any, 0, len(attrs)+4)
	args = append(args, "component", l.component)
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	args = append(args, attrs...)
	l.base.Log(ctx, level, msg, args...)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
