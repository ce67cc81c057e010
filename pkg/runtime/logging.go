package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/tracelog"
)

// NewLogger builds a slog logger. format is "text" or "json"; level is
// debug, info, warn or error.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(orDefault(level, "info")))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(orDefault(format, "text")) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// NewTracer adapts logger to pgx statement tracing at the given level.
func NewTracer(logger *slog.Logger, level string) (*tracelog.TraceLog, error) {
	lvl, err := parseTraceLevel(level)
	if err != nil {
		return nil, err
	}
	return &tracelog.TraceLog{
		Logger:   slogAdapter{logger: logger},
		LogLevel: lvl,
	}, nil
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(ctx, slogLevel(level), msg, attrs...)
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return slog.LevelDebug
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func parseTraceLevel(level string) (tracelog.LogLevel, error) {
	if level == "" {
		return tracelog.LogLevelWarn, nil
	}
	lvl, err := tracelog.LogLevelFromString(strings.ToLower(level))
	if err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
