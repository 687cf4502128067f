package studio

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var defaultLogger atomic.Pointer[log.Logger]

func init() {
	defaultLogger.Store(NewLogger(os.Stderr, log.InfoLevel))
}

// NewLogger creates a logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Logger returns the package default logger.
func Logger() *log.Logger {
	return defaultLogger.Load()
}

// SetLogger replaces the package default logger. A nil logger is ignored.
func SetLogger(l *log.Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// componentLogger returns l (or the default logger) with the given prefix.
func componentLogger(l *log.Logger, prefix string) *log.Logger {
	if l == nil {
		l = Logger()
	}
	return l.WithPrefix(prefix)
}

type ctxKey int

const loggerKey ctxKey = 0

// ContextWithLogger returns a new context with the given logger attached.
func ContextWithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns the package default logger.
func LoggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return Logger()
}

// ParseLogLevel parses a level name, defaulting to info for an empty string.
func ParseLogLevel(s string) (log.Level, error) {
	if s == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, WrapError(ErrCodeInvalidConfig, err, "log level %q", s)
	}
	return lvl, nil
}
