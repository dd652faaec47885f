// Package logging builds the process logger. Records go to a writer as either JSON or
// logfmt-style text; the level is chosen by name.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger writing to w. An empty format means text; an unknown level means info.
func New(format, level string, w io.Writer) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Level picks the effective level name from the verbosity flags, falling back to configured.
func Level(quiet, verbose, debug bool, configured string) string {
	switch {
	case debug:
		return "debug"
	case verbose:
		return "info"
	case quiet:
		return "error"
	default:
		return configured
	}
}
