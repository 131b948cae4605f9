// Package logger defines the logging contract every adapter carries and a
// zerolog-backed default implementation.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal surface the model layer and adapters log through.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ZeroLogger adapts a zerolog.Logger to the Logger interface.
type ZeroLogger struct {
	logger zerolog.Logger
}

// New returns a ZeroLogger writing JSON lines to w at the given level.
// A nil writer defaults to stderr.
func New(w io.Writer, level zerolog.Level) *ZeroLogger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &ZeroLogger{logger: l}
}

func (z *ZeroLogger) Error(msg string, args ...any) {
	z.emit(z.logger.Error(), msg, args)
}

func (z *ZeroLogger) Warn(msg string, args ...any) {
	z.emit(z.logger.Warn(), msg, args)
}

func (z *ZeroLogger) Info(msg string, args ...any) {
	z.emit(z.logger.Info(), msg, args)
}

func (z *ZeroLogger) Debug(msg string, args ...any) {
	z.emit(z.logger.Debug(), msg, args)
}

func (z *ZeroLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
