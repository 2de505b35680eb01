package mediasoupclient

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

var (
	// defaultLoggerImpl writes human readable lines to stderr.
	defaultLoggerImpl = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		color, _ := strconv.ParseBool(os.Getenv("DEBUG_COLORS"))
		w.NoColor = !color
		w.TimeFormat = "2006-01-02 15:04:05.999"
	})).With().Timestamp().Logger()

	defaultLoggerLevel = zerolog.InfoLevel

	// NewLogger creates the logger of a scope such as "Room" or "Transport". Replace it to
	// route the client logs elsewhere.
	NewLogger = func(scope string) logr.Logger {
		level := defaultLoggerLevel
		if debugEnabled(os.Getenv("DEBUG"), scope) {
			level = zerolog.DebugLevel
		}
		logger := defaultLoggerImpl.Level(level)

		return zerologr.New(&logger).WithName(scope)
	}
)

// debugEnabled reports whether the comma separated glob patterns enable scope. A leading
// "-" negates a pattern and the last matching pattern wins.
func debugEnabled(patterns, scope string) bool {
	enabled := false

	for _, part := range strings.Split(patterns, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		match := true
		if part[0] == '-' {
			match = false
			part = part[1:]
		}
		if g, err := glob.Compile(part); err == nil && g.Match(scope) {
			enabled = match
		}
	}

	return enabled
}

func init() {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z07:00"
	zerologr.VerbosityFieldName = ""
}
