package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level is the minimum severity a Logger writes
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel converts a level name such as "debug" or "WARN" into a Level.
// Unknown names fall back to LevelInfo.
func ParseLevel(name string) Level {
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

// Logger is a wrapper around the standard library logger
type Logger struct {
	*log.Logger
	component string
	level     Level
}

// New creates a new logger tagged with the given component name
func New(component string) *Logger {
	return &Logger{
		Logger:    log.New(os.Stdout, "", 0),
		component: component,
		level:     defaultLevel,
	}
}

// NewWithWriter creates a logger writing to w, mostly useful in tests
func NewWithWriter(w io.Writer, component string, level Level) *Logger {
	return &Logger{
		Logger:    log.New(w, "", 0),
		component: component,
		level:     level,
	}
}

// formatMessage formats a log message with timestamp and component
func (l *Logger) formatMessage(level Level, format string, v ...interface{}) string {
	timestamp := time.Now().Format(time.RFC3339)
	message := fmt.Sprintf(format, v...)

	if l.component != "" {
		return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, levelNames[level], l.component, message)
	}

	return fmt.Sprintf("[%s] [%s] %s", timestamp, levelNames[level], message)
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	l.Logger.Println(l.formatMessage(level, format, v...))
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.write(LevelError, format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.write(LevelDebug, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.write(LevelWarn, format, v...)
}

var defaultLevel = LevelInfo

// SetDefaultLevel sets the level used by loggers created afterwards with New
// and by the global logger
func SetDefaultLevel(level Level) {
	defaultLevel = level
	Global.level = level
}

// Global logger instance for application-wide logging
var Global = New("")
