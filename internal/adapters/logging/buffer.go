package logging

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// DefaultBufferSize is the number of entries a BufferLogger keeps by default.
const DefaultBufferSize = 50

// Entry is a single captured log line.
type Entry struct {
	Time    time.Time
	Level   ports.Level
	Message string
	Fields  []ports.Field
}

// Text renders the entry as "msg k=v ...".
func (e Entry) Text() string {
	return e.Message + formatFields(e.Fields)
}

// BufferLogger keeps the most recent entries in memory.
// The plugin status view reads them instead of letting log output
// write over the alternate screen.
type BufferLogger struct {
	ring   *ring
	fields []ports.Field
}

type ring struct {
	mu      sync.Mutex
	level   ports.Level
	entries []Entry
	next    int
	full    bool
	now     func() time.Time
}

// NewBufferLogger creates a buffer logger holding at most size entries.
func NewBufferLogger(size int, level ports.Level) *BufferLogger {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferLogger{ring: &ring{
		level:   level,
		entries: make([]Entry, size),
		now:     time.Now,
	}}
}

// Debug records a debug message.
func (l *BufferLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	l.record(ports.LevelDebug, msg, fields)
}

// Info records an informational message.
func (l *BufferLogger) Info(_ context.Context, msg string, fields ...ports.Field) {
	l.record(ports.LevelInfo, msg, fields)
}

// Warn records a warning message.
func (l *BufferLogger) Warn(_ context.Context, msg string, fields ...ports.Field) {
	l.record(ports.LevelWarn, msg, fields)
}

// Error records an error message.
func (l *BufferLogger) Error(_ context.Context, msg string, fields ...ports.Field) {
	l.record(ports.LevelError, msg, fields)
}

// With returns a logger sharing the same buffer with extra fields.
func (l *BufferLogger) With(fields ...ports.Field) ports.Logger {
	return &BufferLogger{ring: l.ring, fields: joinFields(l.fields, fields)}
}

// Level returns the minimum log level.
func (l *BufferLogger) Level() ports.Level {
	l.ring.mu.Lock()
	defer l.ring.mu.Unlock()
	return l.ring.level
}

// SetLevel sets the minimum log level.
func (l *BufferLogger) SetLevel(level ports.Level) {
	l.ring.mu.Lock()
	defer l.ring.mu.Unlock()
	l.ring.level = level
}

// Entries returns the buffered entries, oldest first.
func (l *BufferLogger) Entries() []Entry {
	r := l.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

func (l *BufferLogger) record(level ports.Level, msg string, fields []ports.Field) {
	r := l.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if level < r.level {
		return
	}
	r.entries[r.next] = Entry{
		Time:    r.now(),
		Level:   level,
		Message: msg,
		Fields:  joinFields(l.fields, fields),
	}
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

var _ ports.Logger = (*BufferLogger)(nil)
