// Package logging wraps zerolog with a key/value API used across the price node.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger. Fields are passed as alternating key/value pairs;
// a non-string key drops the pair.
type Logger struct {
	logger zerolog.Logger
}

// Init builds the process logger from the logging config and installs it as the
// zerolog global. output is "stdout", "stderr" or a file path.
func Init(level, format, output string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var writer io.Writer
	switch output {
	case "", "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G302 G304 -- operator supplied log path
		if err != nil {
			return nil, err
		}
		writer = file
	}

	logger := New(writer, format)
	log.Logger = logger.logger
	return logger, nil
}

// New creates a logger writing to w. format is "json" or "text".
func New(w io.Writer, format string) *Logger {
	if strings.EqualFold(format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &Logger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// With returns a child logger carrying the given pairs on every event.
func (l *Logger) With(fields ...interface{}) *Logger {
	ctx := l.logger.With()
	eachField(fields, func(key string, value interface{}) {
		if err, ok := value.(error); ok {
			ctx = ctx.AnErr(key, err)
			return
		}
		ctx = ctx.Interface(key, value)
	})
	return &Logger{logger: ctx.Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	emit(l.logger.Debug(), msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...interface{}) {
	emit(l.logger.Info(), msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	emit(l.logger.Warn(), msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...interface{}) {
	emit(l.logger.Error(), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields []interface{}) {
	if event == nil {
		return
	}
	eachField(fields, func(key string, value interface{}) {
		switch v := value.(type) {
		case error:
			event.AnErr(key, v)
		case time.Duration:
			event.Str(key, v.String())
		default:
			event.Interface(key, v)
		}
	})
	event.Msg(msg)
}

func eachField(fields []interface{}, fn func(key string, value interface{})) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		fn(key, fields[i+1])
	}
}

var global atomic.Pointer[Logger]

// SetGlobal installs l as the fallback logger for components built without one.
func SetGlobal(l *Logger) {
	global.Store(l)
}

// Global returns the logger installed by SetGlobal, or a noop logger.
func Global() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return NewNoopLogger()
}
