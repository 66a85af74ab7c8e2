// Package zerolog adapts github.com/rs/zerolog to the broker.Logger interface.
package zerolog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/coregx/broker"
)

// Logger implements broker.Logger on a zerolog.Logger.
type Logger struct {
	log zerolog.Logger
}

var _ broker.Logger = (*Logger)(nil)

// New creates a JSON logger writing to w (os.Stdout if nil) at the given level.
// An empty or unknown level falls back to info.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = os.Stdout
	}

	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	return Wrap(zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "broker").
		Logger())
}

// Wrap adapts an already configured zerolog.Logger.
func Wrap(log zerolog.Logger) *Logger {
	return &Logger{log: log}
}

// WithComponent returns a child logger annotated with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{log: l.log.With().Str("component", component).Logger()}
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.log
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(message string) {
	l.log.Info().Msg(message)
}
