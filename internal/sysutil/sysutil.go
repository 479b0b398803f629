// Package sysutil holds process-level helpers used by the server entrypoint:
// logger setup, gin mode selection, and storage target resolution.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// ConfigureLogger installs the global logger. Pretty selects a human-readable
// console writer; otherwise one JSON object per line is written to w
// (stdout when nil).
func ConfigureLogger(level string, pretty bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// GinMode maps a configured mode to one gin accepts, defaulting to release.
func GinMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "debug", "test", "release":
		return m
	default:
		return "release"
	}
}

// StorageTarget picks what to hand to the database opener: the DSN for
// postgres, the file path (default app.db) for sqlite.
func StorageTarget(driver, path, dsn string) string {
	if strings.EqualFold(strings.TrimSpace(driver), "postgres") {
		return strings.TrimSpace(dsn)
	}
	return strings.TrimSpace(FirstNonEmpty(path, "app.db"))
}

// FirstNonEmpty returns the first non-empty string from a variadic list.
// If all values are empty, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
