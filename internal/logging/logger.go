package logging

import (
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"
)

// Logger interface is to abstract the logging from h2conn. Gives control to
// the h2conn users, choice of the logger.
type Logger interface {
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// New returns the default Logger, writing level-prefixed lines to w.
func New(w io.Writer) Logger {
	return &logger{l: log.New(w, "", log.Ldate|log.Lmicroseconds)}
}

// Default writes to os.Stderr.
func Default() Logger {
	return New(os.Stderr)
}

// Disabled drops everything.
func Disabled() Logger {
	return &disableLogger{}
}

var _ Logger = (*logger)(nil)

type disableLogger struct{}

func (l *disableLogger) Errorf(format string, v ...interface{}) {}
func (l *disableLogger) Warnf(format string, v ...interface{})  {}
func (l *disableLogger) Debugf(format string, v ...interface{}) {}

type logger struct {
	l *log.Logger
}

func (l *logger) Errorf(format string, v ...interface{}) {
	l.output("ERROR", format, v...)
}

func (l *logger) Warnf(format string, v ...interface{}) {
	l.output("WARN", format, v...)
}

func (l *logger) Debugf(format string, v ...interface{}) {
	l.output("DEBUG", format, v...)
}

func (l *logger) output(level, format string, v ...interface{}) {
	format = level + " [h2conn] " + format
	if len(v) == 0 {
		l.l.Print(format)
		return
	}
	l.l.Printf(format, v...)
}

// FromZerolog adapts a zerolog.Logger. Every line carries
// component=h2conn.
func FromZerolog(zl zerolog.Logger) Logger {
	return &zeroLogger{l: zl.With().Str("component", "h2conn").Logger()}
}

type zeroLogger struct {
	l zerolog.Logger
}

func (z *zeroLogger) Errorf(format string, v ...interface{}) {
	z.l.Error().Msgf(format, v...)
}

func (z *zeroLogger) Warnf(format string, v ...interface{}) {
	z.l.Warn().Msgf(format, v...)
}

func (z *zeroLogger) Debugf(format string, v ...interface{}) {
	z.l.Debug().Msgf(format, v...)
}

// Debug wraps l so Debugf is a no-op unless enabled is true.
func Debug(l Logger, enabled bool) Logger {
	if l == nil {
		l = Disabled()
	}
	if enabled {
		return l
	}
	return quietLogger{l}
}

type quietLogger struct {
	Logger
}

func (quietLogger) Debugf(format string, v ...interface{}) {}
