package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const EnvLogLevel = "QUICKSHOW_LOG_LEVEL"

// New builds the process root logger: console output, info level by
// default, overridable via QUICKSHOW_LOG_LEVEL.
func New() zerolog.Logger {
	level := parseLevel(os.Getenv(EnvLogLevel))

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func parseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
