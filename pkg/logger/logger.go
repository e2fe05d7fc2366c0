// Package logger provides structured logging for the realtime client,
// built on log/slog. All packages log through the package-level
// functions so the daemon can switch level and format from flags.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide logger instance.
var Logger *slog.Logger

func init() {
	Init("info", "text")
}

// Init configures the logger. Level is one of debug, info, warn,
// error; format is text or json. Unknown values fall back to info/text.
func Init(level, format string) {
	logLevel := levelFromString(level)

	opts := &slog.HandlerOptions{
		Level: logLevel,
		// Source locations are only worth the noise when debugging.
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func levelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}
