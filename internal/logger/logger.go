package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Logger is a level-gated printf-style logger backed by zerolog.
// The zero value is not usable; use New, NewConsole or Nop.
type Logger struct {
	zl    zerolog.Logger
	level atomic.Int32
}

// New creates a logger writing JSON lines to w.
func New(w io.Writer, level Level) *Logger {
	l := &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
	l.level.Store(int32(level))
	return l
}

// NewConsole creates a logger writing human-readable lines to w.
func NewConsole(w io.Writer, level Level) *Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	l := &Logger{zl: zerolog.New(cw).With().Timestamp().Logger()}
	l.level.Store(int32(level))
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := &Logger{zl: zerolog.Nop()}
	l.level.Store(int32(LevelError + 1))
	return l
}

func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

func (l *Logger) EnabledDebug() bool {
	return l.enabled(LevelDebug)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.enabled(LevelDebug) {
		l.zl.Debug().Msgf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.enabled(LevelInfo) {
		l.zl.Info().Msgf(format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.enabled(LevelWarn) {
		l.zl.Warn().Msgf(format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l.enabled(LevelError) {
		l.zl.Error().Msgf(format, args...)
	}
}

func (l *Logger) enabled(level Level) bool {
	return level >= l.Level()
}

var std atomic.Pointer[Logger]

func init() {
	std.Store(NewConsole(os.Stderr, LevelInfo))
}

// Default returns the process-wide logger used by the package-level functions.
func Default() *Logger {
	return std.Load()
}

func SetDefault(l *Logger) {
	if l != nil {
		std.Store(l)
	}
}

// Init replaces the default logger. format "json" writes JSON lines, anything else is console output.
func Init(level, format string) {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		SetDefault(New(os.Stderr, ParseLevel(level)))
		return
	}
	SetDefault(NewConsole(os.Stderr, ParseLevel(level)))
}

// SetLevelFromString changes the level of the default logger in place.
func SetLevelFromString(level string) {
	Default().SetLevel(ParseLevel(level))
}

func Debugf(format string, args ...any) {
	Default().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	Default().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	Default().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	Default().Errorf(format, args...)
}
