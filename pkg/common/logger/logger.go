package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/rollbar/rollbar-go"
)

// Logger is a thin wrapper around the standard logger that provides leveled logging
type Logger struct {
	*log.Logger
}

var std = &Logger{log.New(os.Stdout, "", log.LstdFlags)}

// LogLevel represents the logging level
type LogLevel int

const (
	// DebugLevel logs are typically verbose
	DebugLevel LogLevel = iota
	// InfoLevel is the default logging priority
	InfoLevel
	// WarnLevel logs are warnings
	WarnLevel
	// ErrorLevel logs are high-priority
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

var (
	mu           sync.RWMutex
	currentLevel = InfoLevel
	forwarding   bool
)

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" (any case) to a level.
// Unknown values fall back to InfoLevel.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Initialize sets up the global logger level based on input string (e.g., "debug", "info", "warn", "error")
func Initialize(level string) {
	lvl := ParseLevel(level)
	mu.Lock()
	currentLevel = lvl
	mu.Unlock()
	if lvl == DebugLevel {
		std.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		return
	}
	std.SetFlags(log.Ldate | log.Ltime)
}

// SetOutput redirects the global logger, mostly useful in tests.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// EnableRollbar forwards Warn and Error entries to Rollbar.
// An empty token leaves forwarding disabled.
func EnableRollbar(token, env, host string) {
	if token == "" {
		return
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetServerHost(host)
	rollbar.SetEnabled(true)
	mu.Lock()
	forwarding = true
	mu.Unlock()
}

// Flush waits for pending Rollbar deliveries.
func Flush() {
	mu.RLock()
	on := forwarding
	mu.RUnlock()
	if on {
		rollbar.Wait()
	}
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	mu.RLock()
	lvl, fwd := currentLevel, forwarding
	mu.RUnlock()
	if level < lvl {
		return
	}
	msg := fmt.Sprintf(format, v...)
	_ = l.Output(3, "["+levelNames[level]+"] "+msg)
	if !fwd {
		return
	}
	switch level {
	case WarnLevel:
		rollbar.Warning(msg)
	case ErrorLevel:
		rollbar.Error(msg)
	}
}

// Package-level helpers
func Debug(format string, v ...interface{}) { std.log(DebugLevel, format, v...) }
func Info(format string, v ...interface{})  { std.log(InfoLevel, format, v...) }
func Warn(format string, v ...interface{})  { std.log(WarnLevel, format, v...) }
func Error(format string, v ...interface{}) { std.log(ErrorLevel, format, v...) }
