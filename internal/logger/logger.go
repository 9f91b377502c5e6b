// Package logger is a module-tagged, leveled logger backed by zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogLevel is the minimum severity a Logger emits.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	SILENT // drops everything
)

var levels = [...]struct {
	name string
	zl   zerolog.Level
}{
	DEBUG:  {"DEBUG", zerolog.DebugLevel},
	INFO:   {"INFO", zerolog.InfoLevel},
	WARN:   {"WARN", zerolog.WarnLevel},
	ERROR:  {"ERROR", zerolog.ErrorLevel},
	SILENT: {"SILENT", zerolog.Disabled},
}

const timeFormat = "2006/01/02 15:04:05.000000"

// Logger writes "<time> <LVL> <message> module=<tag>" lines.
type Logger struct {
	level atomic.Int32
	zl    zerolog.Logger
}

var (
	defaultLogger *Logger
	initOnce      sync.Once
)

// Init sets the process-wide logger. Later calls are ignored.
func Init(level LogLevel, output io.Writer, useColor bool) {
	initOnce.Do(func() {
		defaultLogger = New(level, output, useColor)
	})
}

// New creates a Logger writing to output (stderr when nil).
func New(level LogLevel, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	l := &Logger{
		zl: zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    !useColor,
			TimeFormat: timeFormat,
		}).With().Timestamp().Logger(),
	}
	l.SetLevel(level)
	return l
}

func (l *Logger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *Logger) GetLevel() LogLevel { return LogLevel(l.level.Load()) }

func (l *Logger) emit(level LogLevel, module, format string, args []any) {
	if level < l.GetLevel() || level >= SILENT {
		return
	}
	ev := l.zl.WithLevel(levels[level].zl)
	if module != "" {
		ev = ev.Str("module", module)
	}
	ev.Msgf(format, args...)
}

func (l *Logger) Debug(module, format string, args ...any) { l.emit(DEBUG, module, format, args) }
func (l *Logger) Info(module, format string, args ...any)  { l.emit(INFO, module, format, args) }
func (l *Logger) Warn(module, format string, args ...any)  { l.emit(WARN, module, format, args) }
func (l *Logger) Error(module, format string, args ...any) { l.emit(ERROR, module, format, args) }

// Package-level helpers write to the Init logger and are no-ops before Init.

func SetLevel(level LogLevel) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

func GetLevel() LogLevel {
	if defaultLogger == nil {
		return INFO
	}
	return defaultLogger.GetLevel()
}

func Debug(module, format string, args ...any) { logDefault(DEBUG, module, format, args) }
func Info(module, format string, args ...any)  { logDefault(INFO, module, format, args) }
func Warn(module, format string, args ...any)  { logDefault(WARN, module, format, args) }
func Error(module, format string, args ...any) { logDefault(ERROR, module, format, args) }

func logDefault(level LogLevel, module, format string, args []any) {
	if defaultLogger != nil {
		defaultLogger.emit(level, module, format, args)
	}
}

// ParseLevel accepts level names in any case, plus "warning" and "none".
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "SILENT", "NONE":
		return SILENT, nil
	}
	return INFO, fmt.Errorf("invalid log level: %s", s)
}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levels) {
		return levels[l].name
	}
	return "UNKNOWN"
}
