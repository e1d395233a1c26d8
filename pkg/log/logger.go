// Package log holds the zerolog loggers of each component.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Component loggers. They discard everything until Init is called.
var (
	Root     = zerolog.Nop()
	Settings = zerolog.Nop()
	Isa      = zerolog.Nop()
	Store    = zerolog.Nop()
)

type Format uint8

const (
	Console Format = iota
	JSON
)

type Options struct {
	Level  zerolog.Level
	Format Format
	// Output defaults to stderr so command output stays clean.
	Output io.Writer
}

// ParseLevel accepts zerolog level names in any case. An empty name means warn.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}

func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Format == Console {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.TimeOnly}
	}

	Root = zerolog.New(out).Level(opts.Level).With().Timestamp().Logger()
	Settings = component("settings")
	Isa = component("isa")
	Store = component("store")
}

func component(name string) zerolog.Logger {
	return Root.With().Str("component", name).Logger()
}
