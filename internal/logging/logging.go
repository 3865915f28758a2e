package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel LogLevel
	logger       zerolog.Logger
	levelOnce    sync.Once
)

// initLevel initializes the logger from environment variables unless
// Configure has already run.
func initLevel() {
	levelOnce.Do(func() {
		level := ParseLevel(os.Getenv("LOG_LEVEL"))
		if DebugRequested() {
			level = LevelDebug
		}

		mu.Lock()
		currentLevel = level
		logger = zerolog.New(ConsoleWriter(os.Stderr)).With().Timestamp().Logger()
		mu.Unlock()
	})
}

// DebugRequested reports whether DEBUG is set to 1, true, yes or on.
func DebugRequested() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEBUG"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ParseLevel converts a level name into a LogLevel. Unknown names yield LevelInfo.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Configure replaces the process logger. Format "json" writes one JSON
// object per line; anything else uses the console writer.
func Configure(level LogLevel, format string, w io.Writer) {
	levelOnce.Do(func() {})

	var out io.Writer = w
	if !strings.EqualFold(format, "json") {
		if f, ok := w.(*os.File); ok {
			out = ConsoleWriter(f)
		} else {
			out = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.DateTime}
		}
	}

	mu.Lock()
	currentLevel = level
	logger = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()
}

// ConsoleWriter returns a zerolog console writer that only colors output on a terminal.
func ConsoleWriter(f *os.File) io.Writer {
	noColor := !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	return zerolog.ConsoleWriter{Out: f, NoColor: noColor, TimeFormat: time.DateTime}
}

// Logger returns the underlying structured logger.
func Logger() *zerolog.Logger {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(level LogLevel, format string, args []interface{}) {
	if GetLevel() > level {
		return
	}
	l := Logger()
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.Debug()
	case LevelInfo:
		ev = l.Info()
	case LevelWarn:
		ev = l.Warn()
	default:
		ev = l.Error()
	}
	ev.Msgf(format, args...)
}

// Debug logs a debug message (only at LevelDebug, e.g. DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	emit(LevelDebug, format, args)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	emit(LevelInfo, format, args)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	emit(LevelWarn, format, args)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	emit(LevelError, format, args)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	Logger().Fatal().Msgf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
