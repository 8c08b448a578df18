// Package logging builds the service logger and keeps credentials out of logs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveFragments are matched case-insensitively against attribute keys
var sensitiveFragments = []string{
	"api_key",
	"authorization",
	"password",
	"token",
	"secret",
	"key",
	"uri",
}

// IsSensitive reports whether an attribute key names a credential-like value.
// Token counters are metrics, not secrets, and are not redacted.
func IsSensitive(key string) bool {
	key = strings.ToLower(key)
	if strings.HasSuffix(key, "_tokens") {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

// New returns a JSON logger writing to stdout at the given level
// ("debug", "info", "warn", "error"; anything else means info).
// Sensitive attributes are redacted on every record.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if IsSensitive(a.Key) {
				return slog.String(a.Key, redacted)
			}
			return a
		},
	}))
}

// ParseLevel maps a level name to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SecureLogger redacts key/value arguments before they reach any handler,
// for loggers not built by New.
type SecureLogger struct {
	logger *slog.Logger
}

func NewSecureLogger(logger *slog.Logger) *SecureLogger {
	return &SecureLogger{logger: logger}
}

func (sl *SecureLogger) redact(args []any) []any {
	// not key/value pairs
	if len(args)%2 != 0 {
		return args
	}

	out := make([]any, len(args))
	copy(out, args)
	for i := 0; i < len(out); i += 2 {
		if key, ok := out[i].(string); ok && IsSensitive(key) {
			out[i+1] = redacted
		}
	}
	return out
}

func (sl *SecureLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, sl.redact(args)...)
}

func (sl *SecureLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, sl.redact(args)...)
}

func (sl *SecureLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, sl.redact(args)...)
}

func (sl *SecureLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, sl.redact(args)...)
}
