// Package logging installs the default slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is text for colored human readable output or json.
	Format string
}

// Setup sets the default logger according to c.
func Setup(c Config) {
	slog.SetDefault(New(os.Stderr, c))
}

func New(w io.Writer, c Config) *slog.Logger {
	level := ParseLevel(c.Level)

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
