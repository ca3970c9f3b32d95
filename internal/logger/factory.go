package logger

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Setup configures the global charm logger used by package-level log calls.
// format is "text", "json" or "logfmt".
func Setup(debug bool, format string) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.SetDefault(NewWithConfig("", level, debug, debug, ParseFormatter(format)))
}

// ParseFormatter maps a format name onto a charm formatter, defaulting to
// text.
func ParseFormatter(name string) log.Formatter {
	switch strings.ToLower(name) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
