package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Mock returns a logger that discards everything.
func Mock() Logger {
	l := &DefaultLogger{
		sinks: []io.Writer{io.Discard},
		level: zerolog.Disabled,
		day:   "2006-01-02",
	}
	l.rebuild()

	return l
}
