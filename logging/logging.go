// Package logging configures the global zerolog logger for ampserver.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const EnvLogLevel = "MONOPRICE_LOG_LEVEL"

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Configure sets the global level and output. An EnvLogLevel value in the
// environment wins over level. Unknown levels fall back to info.
func Configure(level, format string) zerolog.Logger {
	return configure(level, format, os.Stderr)
}

func configure(level, format string, out io.Writer) zerolog.Logger {
	lvl, ok := ParseLevel(os.Getenv(EnvLogLevel))
	if !ok {
		lvl, _ = ParseLevel(level)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel maps a level name to a zerolog level. The second result is
// false when raw is empty or not recognised.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// ValidFormat reports whether format is understood by Configure.
func ValidFormat(format string) bool {
	return format == FormatConsole || format == FormatJSON
}
