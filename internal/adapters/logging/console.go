// Package logging provides implementations of the ports.Logger interface:
// a console logger for CLI output and a buffer logger that keeps recent
// entries for the plugin status view.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// ConsoleLogger writes structured log lines to a writer.
// Loggers derived with With share the writer, mutex and level.
type ConsoleLogger struct {
	sink   *consoleSink
	fields []ports.Field
}

type consoleSink struct {
	mu         sync.Mutex
	out        io.Writer
	level      ports.Level
	jsonFormat bool
	timestamps bool
	now        func() time.Time
}

// ConsoleLoggerOption configures the console logger.
type ConsoleLoggerOption func(*consoleSink)

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) ConsoleLoggerOption {
	return func(s *consoleSink) {
		s.out = w
	}
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) ConsoleLoggerOption {
	return func(s *consoleSink) {
		s.level = level
	}
}

// WithJSONFormat switches output to one JSON object per line.
func WithJSONFormat(enabled bool) ConsoleLoggerOption {
	return func(s *consoleSink) {
		s.jsonFormat = enabled
	}
}

// WithTimestamp includes a timestamp in log entries (default: true).
func WithTimestamp(enabled bool) ConsoleLoggerOption {
	return func(s *consoleSink) {
		s.timestamps = enabled
	}
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger(opts ...ConsoleLoggerOption) *ConsoleLogger {
	sink := &consoleSink{
		out:        os.Stderr,
		level:      ports.LevelInfo,
		timestamps: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return &ConsoleLogger{sink: sink}
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelError, msg, fields)
}

// With returns a logger that adds fields to every entry.
func (l *ConsoleLogger) With(fields ...ports.Field) ports.Logger {
	return &ConsoleLogger{sink: l.sink, fields: joinFields(l.fields, fields)}
}

// Level returns the minimum log level.
func (l *ConsoleLogger) Level() ports.Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

// SetLevel sets the minimum log level for this logger and all loggers derived from it.
func (l *ConsoleLogger) SetLevel(level ports.Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *ConsoleLogger) write(level ports.Level, msg string, fields []ports.Field) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	all := joinFields(l.fields, fields)
	if s.jsonFormat {
		s.writeJSON(level, msg, all)
		return
	}
	s.writeText(level, msg, all)
}

func (s *consoleSink) writeJSON(level ports.Level, msg string, fields []ports.Field) {
	entry := make(map[string]any, len(fields)+3)
	if s.timestamps {
		entry["time"] = s.now().UTC().Format(time.RFC3339)
	}
	entry["level"] = level.String()
	entry["msg"] = msg
	for _, f := range fields {
		entry[f.Key] = f.Value
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(s.out, string(data))
}

func (s *consoleSink) writeText(level ports.Level, msg string, fields []ports.Field) {
	var b strings.Builder
	if s.timestamps {
		b.WriteString(s.now().Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "[%s] %s", level.String(), msg)
	b.WriteString(formatFields(fields))
	_, _ = fmt.Fprintln(s.out, b.String())
}

// formatFields renders fields as " k=v k2=v2". Values containing spaces are quoted.
func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		v := fmt.Sprint(f.Value)
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", f.Key, v)
	}
	return b.String()
}

func joinFields(base, extra []ports.Field) []ports.Field {
	out := make([]ports.Field, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

var _ ports.Logger = (*ConsoleLogger)(nil)
