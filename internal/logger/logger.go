package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a console logger tagged with the component name.
func New(debug bool, tag string) zerolog.Logger {
	return NewWithWriter(os.Stderr, debug, tag)
}

func NewWithWriter(w io.Writer, debug bool, tag string) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.0000"}
	return zerolog.New(output).Level(level).With().Timestamp().Str("s", tag).Logger()
}

// Component derives a child logger for a subsystem.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("c", name).Logger()
}
