// Package logger defines the structured logging contract used by every go-thales package.
//
// Connections, file interfaces and the script wrapper accept a Logger through their options and
// fall back to the package default returned by GetLogger. Messages carry key/value pairs, e.g.
//
//	l.Debug("telegram received", "channel", 2, "len", 17)
//
// Log Levels:
//
//   - DebugLevel: telegram level tracing, disabled in production.
//   - InfoLevel: connection lifecycle and file transfer events.
//   - WarnLevel: recoverable protocol anomalies such as telegrams on unregistered channels.
//   - ErrorLevel: transport failures and aborted transfers.
//   - FatalLevel: unrecoverable errors, the process exits after logging.
package logger

import (
	"fmt"
	"strings"
)

// LogLevel indicates the logging severity level.
type LogLevel = int8

// Level is an alias of LogLevel kept for call sites that read better with the short name.
type Level = LogLevel

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly,
	// it shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// ParseLevel converts a level name such as "debug" or "WARN" to a LogLevel.
// An empty string maps to InfoLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines a common interface for logging.
type Logger interface {
	// Debug logs a message at DebugLevel.
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1) even if FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() LogLevel
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level LogLevel)
}
