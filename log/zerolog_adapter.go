// Package log adapts a zerolog.Logger to the one-method Logger seam the
// server exposes, so embedders get structured logging without the core
// depending on any particular logging library.
package log

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Adapter implements httpcore.Logger on top of a zerolog.Logger. Printf
// calls land as a single message event at the adapter's level.
type Adapter struct {
	l     zerolog.Logger
	level zerolog.Level
}

// NewAdapter wraps l. Events are emitted at lvl; pass zerolog.DebugLevel
// for connection-lifecycle noise, zerolog.WarnLevel for the worker pool's
// serving errors.
func NewAdapter(l zerolog.Logger, lvl zerolog.Level) *Adapter {
	return &Adapter{l: l, level: lvl}
}

// New builds a zerolog.Logger writing to w with a timestamp, parses level
// (falling back to info on unknown input) and returns both the logger and
// a ready Adapter at warn level for wiring into Config.Logger.
func New(w io.Writer, level string) (zerolog.Logger, *Adapter) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return l, NewAdapter(l, zerolog.WarnLevel)
}

// Printf satisfies httpcore.Logger.
func (a *Adapter) Printf(format string, args ...interface{}) {
	a.l.WithLevel(a.level).Msgf(format, args...)
}
