// Package logging builds the zerolog logger used by the cleaner.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w. Unknown levels fall back to info and
// unknown formats to console; the returned bool reports whether level parsed.
func New(level, format string, w io.Writer) (zerolog.Logger, bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	ok := err == nil && lvl != zerolog.NoLevel
	if !ok {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), ok
}
