package adb

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logger every component in this package
// accepts, rather than reaching for a package-level global. It's a plain
// alias for zerolog.Logger so callers can use the full zerolog API
// (With().Str(...), etc.) without an adapter layer.
type Logger = zerolog.Logger

// NewLogger builds a Logger writing to stdout, JSON by default or a
// colorized console writer when pretty is true. verbose lowers the
// level to debug; otherwise info.
func NewLogger(pretty, verbose bool) Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var w zerolog.Logger
	if pretty {
		w = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	} else {
		w = zerolog.New(os.Stdout)
	}
	return w.Level(level).With().Timestamp().Logger()
}
