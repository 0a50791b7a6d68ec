package internal

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// serviceName is attached to every log line.
const serviceName = "burgerbuilder"

// NewLogger returns the process logger. Production writes JSON with
// RFC3339Nano timestamps; everything else writes text. An unknown level
// falls back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
			slog.Default().Warn("Invalid log level. Using default level: info", slog.String("value", level))
		} else {
			lvl.Set(parsed)
		}
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl.Level() <= slog.LevelDebug,
	}

	var h slog.Handler
	if env == "prod" {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		}
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(slog.String("service", serviceName), slog.String("env", env))
}
