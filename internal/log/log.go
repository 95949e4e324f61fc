package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Options selects level, encoding and sink. An empty File logs to stderr.
type Options struct {
	Level  string
	Format string
	File   string
}

type Logger struct {
	sl     *slog.Logger
	fields map[string]string
}

func New(opts Options) *Logger {
	var out io.Writer = os.Stderr
	if f := strings.TrimSpace(opts.File); f != "" {
		if err := os.MkdirAll(filepath.Dir(f), 0o700); err == nil {
			out = &lumberjack.Logger{
				Filename:   f,
				MaxSize:    maxLogSizeMB,
				MaxBackups: maxLogBackups,
				MaxAge:     maxLogAgeDays,
				Compress:   true,
			}
		}
	}
	return NewWriter(out, opts)
}

// NewWriter logs to w using the level and format from opts.
func NewWriter(w io.Writer, opts Options) *Logger {
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "text") {
		h = slog.NewTextHandler(w, ho)
	} else {
		h = slog.NewJSONHandler(w, ho)
	}
	return &Logger{sl: slog.New(h), fields: map[string]string{}}
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return NewWriter(io.Discard, Options{}) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func (l *Logger) With(kv map[string]string) *Logger {
	child := &Logger{sl: l.sl, fields: make(map[string]string, len(l.fields)+len(kv))}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range kv {
		child.fields[k] = v
	}
	return child
}

func (l *Logger) write(level slog.Level, msg string, kv map[string]any) {
	if !l.sl.Enabled(context.Background(), level) {
		return
	}
	rec := make(map[string]any, len(l.fields)+len(kv))
	for k, v := range l.fields {
		rec[k] = v
	}
	for k, v := range kv {
		rec[k] = v
	}
	maskSecrets(rec)
	attrs := make([]slog.Attr, 0, len(rec))
	for k, v := range rec {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.sl.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l *Logger) Debug(msg string, kv ...any) { l.write(slog.LevelDebug, msg, toMap(kv...)) }
func (l *Logger) Info(msg string, kv ...any)  { l.write(slog.LevelInfo, msg, toMap(kv...)) }
func (l *Logger) Warn(msg string, kv ...any)  { l.write(slog.LevelWarn, msg, toMap(kv...)) }
func (l *Logger) Error(msg string, kv ...any) { l.write(slog.LevelError, msg, toMap(kv...)) }

func toMap(kv ...any) map[string]any {
	m := make(map[string]any)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		m[k] = kv[i+1]
	}
	return m
}

var secretKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}

// token prefixes issued by GitHub and OpenAI-compatible providers
var secretPrefixes = []string{"sk-", "ghp_", "gho_", "ghs_", "ghu_", "github_pat_"}

// maskSecrets redacts likely secret values in-place.
func maskSecrets(m map[string]any) {
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lowerK := strings.ToLower(k)
		masked := false
		for _, p := range secretKeys {
			if strings.Contains(lowerK, p) {
				m[k] = redact(s)
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if strings.HasPrefix(strings.ToLower(s), "bearer ") {
			m[k] = "Bearer " + redact(strings.TrimSpace(s[len("bearer "):]))
			continue
		}
		for _, p := range secretPrefixes {
			if strings.HasPrefix(s, p) {
				m[k] = redact(s)
				break
			}
		}
	}
}

func redact(s string) string {
	n := len(s)
	if n <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[n-4:]
}
