package logger

import "sync/atomic"

var defLogger atomic.Value

func init() {
	defLogger.Store(holder{NewSlog(InfoLevel, false)})
}

// holder keeps atomic.Value storing one concrete type.
type holder struct{ l Logger }

// SetDefault replaces the logger returned by GetLogger and used by the package level helpers.
// A nil logger is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(holder{l})
}

// GetLogger returns the package default logger.
func GetLogger() Logger {
	h, _ := defLogger.Load().(holder)
	return h.l
}

func Debug(msg string, keysAndValues ...any) {
	GetLogger().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	GetLogger().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	GetLogger().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	GetLogger().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	GetLogger().Fatal(msg, keysAndValues...)
}

func SetLevel(level Level) {
	GetLogger().SetLevel(level)
}

func With(keyValues ...any) Logger {
	return GetLogger().With(keyValues...)
}
