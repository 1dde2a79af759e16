package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// LevelEnv selects the log level: debug, info, warn, error (default: info).
	LevelEnv = "FEDPATH_LOG_LEVEL"
	// JSONEnv switches from console output to one JSON object per line.
	JSONEnv = "FEDPATH_LOG_JSON"
)

// Init initializes the global logger from FEDPATH_LOG_LEVEL and FEDPATH_LOG_JSON.
// Lambda runtimes always get JSON output so CloudWatch can index fields.
func Init() {
	jsonOut := isTruthy(os.Getenv(JSONEnv)) || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
	Configure(os.Getenv(LevelEnv), jsonOut, os.Stderr)
}

// Configure sets the global level and output writer.
func Configure(level string, jsonOut bool, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if jsonOut {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
