package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-docgen/docgen"
)

// NewLogger returns a slog.Logger writing text or JSON to w.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SlogLogger adapts a slog.Logger to docgen.Logger.
type SlogLogger struct {
	Logger *slog.Logger
}

var _ docgen.Logger = SlogLogger{}

func (l SlogLogger) Debugf(format string, args ...any) { l.log(slog.LevelDebug, format, args) }
func (l SlogLogger) Infof(format string, args ...any)  { l.log(slog.LevelInfo, format, args) }
func (l SlogLogger) Errorf(format string, args ...any) { l.log(slog.LevelError, format, args) }

func (l SlogLogger) log(level slog.Level, format string, args []any) {
	if l.Logger == nil {
		return
	}
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, fmt.Sprintf(format, args...))
}
