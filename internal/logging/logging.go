// Package logging builds the process logger and the user-facing console.
//
// Diagnostics go through a [log/slog] logger configured from
// [config.Config] and carried on the command context. Status lines meant for
// the person running the watch are written by a [Console] instead.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vibbit-dev/extreload/internal/config"
)

// timeLayout is shared by log records and console lines so both can be
// correlated at a glance.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type ctxKey struct{}

// Setup installs a logger for cfg that writes to stderr.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter installs a logger for cfg that writes to w and makes it
// the slog default.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := slog.New(newHandler(cfg, w)).With(slog.String("component", "extreload"))
	slog.SetDefault(logger)

	return logger
}

func newHandler(cfg *config.Config, w io.Writer) slog.Handler {
	level := ParseLevel(cfg.EffectiveLogLevel())

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: utcTime,
	}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

// utcTime renders the record time in UTC with millisecond precision.
func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(timeLayout))
	}

	return a
}

// ParseLevel maps a configured level name to a slog.Level. Unknown names
// mean info.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by NewContext, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// now is replaced in tests.
var now = time.Now
