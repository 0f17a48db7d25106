// Package logging provides a zerolog wrapper with chatrake's defaults.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger.
type Options struct {
	Level  string // trace|debug|info|warn|error; defaults to info
	Format string // "console" (default) or "json"
	Writer io.Writer
}

// New builds a logger from opts.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if strings.ToLower(opts.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	level := parseLevel(opts.Level)
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Nop returns a disabled logger for tests and plain-output paths.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "", "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
