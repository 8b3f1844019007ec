// Package logger is a thin structured-logging facade over zerolog.
// Services take a *Logger so tests can hand in a quiet one.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls the level and sink. A nil Config means InfoLevel
// console output on stdout.
type Config struct {
	Level      Level
	TimeFormat string
	Output     io.Writer
}

type Logger struct {
	zl zerolog.Logger
}

func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	format := cfg.TimeFormat
	if format == "" {
		format = time.RFC3339
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: format}).
		Level(cfg.Level).
		With().
		Timestamp().
		Caller().
		Logger()
	return &Logger{zl: zl}
}

// WithFields returns a child logger that carries the fields on every
// entry it writes.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// Fields are alternating key/value pairs, zerolog style.

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(err error, msg string, fields ...interface{}) {
	l.zl.Error().Err(err).Fields(fields).Msg(msg)
}

func (l *Logger) Fatal(err error, msg string, fields ...interface{}) {
	l.zl.Fatal().Err(err).Fields(fields).Msg(msg)
}
