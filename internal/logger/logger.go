package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var level = new(slog.LevelVar)

var (
	sessionRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	passwordRegex = regexp.MustCompile(`(?i)\bpassword\d?\s*=\s*\S+`)
	userIDRegex   = regexp.MustCompile(`\buser_id\s*=\s*\d+\b`)
)

// Logger is a centralized structured logger writing one JSON object per line
type Logger struct {
	out *slog.Logger
}

// New creates a new Logger writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger writing to w, used by tests to capture output
func NewWithWriter(w io.Writer) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{out: slog.New(h)}
}

// SetLevel changes the level of every Logger. Unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Anonymize replaces sensitive information in logs (session tokens, passwords, user IDs)
func Anonymize(s string) string {
	s = sessionRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = passwordRegex.ReplaceAllString(s, "password=[REDACTED]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

func (l *Logger) log(module string, lvl slog.Level, msg string, err error) {
	attrs := []slog.Attr{slog.String("module", module)}
	if err != nil {
		attrs = append(attrs, slog.String("error", Anonymize(err.Error())))
	}
	l.out.LogAttrs(context.Background(), lvl, Anonymize(msg), attrs...)
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.log(module, slog.LevelInfo, msg, nil)
}

func (l *Logger) Debug(module, msg string) {
	l.log(module, slog.LevelDebug, msg, nil)
}

func (l *Logger) Error(module, msg string, err error) {
	l.log(module, slog.LevelError, msg, err)
}
